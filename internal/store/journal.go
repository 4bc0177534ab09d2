package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// AccessTracker records that a cached output was handed out, so an external
// eviction policy can prune least-recently-used artifacts. Pass-through
// entries are never marked.
type AccessTracker interface {
	MarkAccessed(path string)
}

// NopTracker discards all access marks.
type NopTracker struct{}

func (NopTracker) MarkAccessed(string) {}

// Journal is a leveldb-backed AccessTracker persisting one last-access
// timestamp per output path. Writes are best-effort: a failed mark must
// never fail a transform batch.
type Journal struct {
	db  *leveldb.DB
	now func() time.Time
}

// OpenJournal opens (or creates) the journal database at dir.
func OpenJournal(dir string) (*Journal, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open access journal %s: %w", dir, err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// MarkAccessed stores the current time for path.
func (j *Journal) MarkAccessed(path string) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(j.now().UnixNano()))
	_ = j.db.Put([]byte(path), buf[:], nil)
}

// LastAccess returns the recorded timestamp for path, if any.
func (j *Journal) LastAccess(path string) (time.Time, bool, error) {
	val, err := j.db.Get([]byte(path), nil)
	if err == leveldb.ErrNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if len(val) != 8 {
		return time.Time{}, false, fmt.Errorf("corrupt journal entry for %s", path)
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(val))), true, nil
}
