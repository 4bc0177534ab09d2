// Package origin writes and reads the provenance record attached to
// run-level cache entries: a fixed set of metadata fields describing where
// and when a cached result was produced. The field set is closed; readers
// reject records with fields missing so format drift is caught early.
package origin

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"runtime"
	"sort"
	"time"
)

// Metadata is the full provenance record. Every field is required.
type Metadata struct {
	Type            string `json:"type"`
	Path            string `json:"path"`
	ToolVersion     string `json:"toolVersion"`
	CreationTime    int64  `json:"creationTime"`
	ExecutionTime   int64  `json:"executionTime"`
	RootPath        string `json:"rootPath"`
	OperatingSystem string `json:"operatingSystem"`
	HostName        string `json:"hostName"`
	UserName        string `json:"userName"`
}

var requiredKeys = []string{
	"type", "path", "toolVersion", "creationTime", "executionTime",
	"rootPath", "operatingSystem", "hostName", "userName",
}

// Factory stamps metadata records with fixed environment facts captured
// once at construction.
type Factory struct {
	toolVersion string
	rootPath    string
	hostName    string
	userName    string
	opSys       string
	now         func() time.Time
}

// NewFactory captures the current host environment.
func NewFactory(toolVersion, rootPath string) *Factory {
	hostName, _ := os.Hostname()
	userName := ""
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}
	return &Factory{
		toolVersion: toolVersion,
		rootPath:    rootPath,
		hostName:    hostName,
		userName:    userName,
		opSys:       runtime.GOOS,
		now:         time.Now,
	}
}

// Create builds the record for one produced result.
func (f *Factory) Create(resultType, resultPath string, elapsed time.Duration) Metadata {
	return Metadata{
		Type:            resultType,
		Path:            resultPath,
		ToolVersion:     f.toolVersion,
		CreationTime:    f.now().UnixMilli(),
		ExecutionTime:   elapsed.Milliseconds(),
		RootPath:        f.rootPath,
		OperatingSystem: f.opSys,
		HostName:        f.hostName,
		UserName:        f.userName,
	}
}

// Write serializes the record as indented JSON.
func Write(w io.Writer, m Metadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Read parses a record, rejecting it if any required field is absent.
func Read(r io.Reader) (Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Metadata{}, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("origin metadata: %w", err)
	}
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Metadata{}, fmt.Errorf("origin metadata missing fields: %v", missing)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("origin metadata: %w", err)
	}
	return m, nil
}
