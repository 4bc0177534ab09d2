package hierarchy

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classBytes assembles a minimal, valid class file declaring name with the
// given supertype and interfaces. The constant pool holds one Utf8 plus one
// Class constant per referenced type.
func classBytes(name, super string, interfaces ...string) []byte {
	var buf bytes.Buffer
	w16 := func(v uint16) { _ = binary.Write(&buf, binary.BigEndian, v) }
	w32 := func(v uint32) { _ = binary.Write(&buf, binary.BigEndian, v) }

	w32(classMagic)
	w16(0)  // minor
	w16(52) // major (Java 8)

	types := []string{name}
	if super != "" {
		types = append(types, super)
	}
	types = append(types, interfaces...)

	w16(uint16(len(types)*2 + 1)) // constant_pool_count
	classIdx := make(map[string]uint16, len(types))
	idx := uint16(1)
	for _, n := range types {
		buf.WriteByte(constUtf8)
		w16(uint16(len(n)))
		buf.WriteString(n)
		buf.WriteByte(constClass)
		w16(idx)
		classIdx[n] = idx + 1
		idx += 2
	}

	w16(0x0021) // access flags
	w16(classIdx[name])
	if super == "" {
		w16(0)
	} else {
		w16(classIdx[super])
	}
	w16(uint16(len(interfaces)))
	for _, i := range interfaces {
		w16(classIdx[i])
	}
	return buf.Bytes()
}

func TestVisitClassRecordsAncestry(t *testing.T) {
	reg := NewRegistry()
	err := reg.VisitClass(classBytes("com/example/Impl", "com/example/Base", "java/io/Closeable", "java/lang/Runnable"))
	require.NoError(t, err)

	info, ok := reg.Info("com/example/Impl")
	require.True(t, ok)
	assert.Equal(t, "com/example/Base", info.Super)
	assert.Equal(t, []string{"java/io/Closeable", "java/lang/Runnable"}, info.Interfaces)
}

func TestVisitClassRejectsGarbage(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.VisitClass([]byte("not a class file")))
	assert.Error(t, reg.VisitClass(classBytes("a/B", "a/C")[:10]), "truncated input")
	assert.Equal(t, 0, reg.Len())
}

func TestSuperTypesFollowsChain(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.VisitClass(classBytes("a/C", "a/B")))
	require.NoError(t, reg.VisitClass(classBytes("a/B", "a/A")))
	require.NoError(t, reg.VisitClass(classBytes("a/A", "java/lang/Object")))

	assert.Equal(t, []string{"a/B", "a/A", "java/lang/Object"}, reg.SuperTypes("a/C"))
	assert.Empty(t, reg.SuperTypes("unknown/Type"))
}

func TestMergeAllIsOrderInsensitive(t *testing.T) {
	r1 := NewRegistry()
	require.NoError(t, r1.VisitClass(classBytes("a/One", "java/lang/Object")))
	r2 := NewRegistry()
	require.NoError(t, r2.VisitClass(classBytes("b/Two", "a/One")))
	r3 := NewRegistry()
	require.NoError(t, r3.VisitClass(classBytes("c/Three", "b/Two", "java/lang/Runnable")))

	forward := MergeAll([]*Registry{r1, r2, r3})
	backward := MergeAll([]*Registry{r3, r2, r1})

	assert.Equal(t, forward.TypeNames(), backward.TypeNames())
	assert.Equal(t, 3, forward.Len())
	assert.Equal(t, []string{"b/Two", "a/One", "java/lang/Object"}, forward.SuperTypes("c/Three"))
}

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.VisitClass(classBytes("a/Impl", "a/Base", "java/io/Closeable")))
	path := filepath.Join(t.TempDir(), "lib.jar.hierarchy")

	require.NoError(t, reg.WriteFile(path))
	loaded, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, reg.TypeNames(), loaded.TypeNames())
	info, ok := loaded.Info("a/Impl")
	require.True(t, ok)
	assert.Equal(t, "a/Base", info.Super)
	assert.Equal(t, []string{"java/io/Closeable"}, info.Interfaces)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.hierarchy"))
	assert.Error(t, err)
}

func TestEmptyRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.hierarchy")
	require.NoError(t, NewRegistry().WriteFile(path))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}
