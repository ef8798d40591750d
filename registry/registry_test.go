package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	triVert = ProgramIdentifier{TestCasePath: "dEQP-VK.api.smoke.triangle", ProgramName: "vert"}
	triFrag = ProgramIdentifier{TestCasePath: "dEQP-VK.api.smoke.triangle", ProgramName: "frag"}
	quadVrt = ProgramIdentifier{TestCasePath: "dEQP-VK.api.smoke.quad", ProgramName: "vert"}
)

func TestWriteAndLookup(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	assert.Equal(t, dir, w.Dir())

	require.NoError(t, w.Add(triVert, []byte{1, 2, 3, 4}))
	require.NoError(t, w.Add(triFrag, []byte{5, 6, 7, 8}))
	require.NoError(t, w.Add(quadVrt, []byte{1, 2, 3, 4}))
	assert.Equal(t, 3, w.Len())
	require.NoError(t, w.Write())

	blobs, err := os.ReadDir(filepath.Join(dir, blobDir))
	require.NoError(t, err)
	assert.Len(t, blobs, 2, "identical binaries share a blob")

	r, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []ProgramIdentifier{quadVrt, triFrag, triVert}, r.IDs())

	got, err := r.Lookup(triFrag)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, got)

	_, err = r.Lookup(ProgramIdentifier{TestCasePath: "x", ProgramName: "y"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddCopiesBinary(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	b := []byte{1, 2, 3, 4}
	require.NoError(t, w.Add(triVert, b))
	b[0] = 9
	require.NoError(t, w.Write())

	r, err := Open(dir)
	require.NoError(t, err)
	got, err := r.Lookup(triVert)
	require.NoError(t, err)
	assert.Equal(t, byte(1), got[0])
}

func TestAddRejects(t *testing.T) {
	w := NewWriter(t.TempDir())
	require.NoError(t, w.Add(triVert, []byte{1}))
	assert.ErrorIs(t, w.Add(triVert, []byte{2}), ErrDuplicate)
	assert.ErrorIs(t, w.Add(triFrag, nil), ErrEmptyBinary)
	assert.Equal(t, 1, w.Len())
}

func TestWriteEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).Write())

	r, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestWriteTwice(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	require.NoError(t, w.Add(triVert, []byte{1, 2, 3, 4}))
	require.NoError(t, w.Write())
	require.NoError(t, w.Write())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{indexFile, blobDir}, names, "no temporary files left behind")
}

func TestLookupCorrupt(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	require.NoError(t, w.Add(triVert, []byte{1, 2, 3, 4}))
	require.NoError(t, w.Write())

	require.NoError(t, os.WriteFile(blobPath(dir, digest([]byte{1, 2, 3, 4})), []byte{0}, 0o644))

	r, err := Open(dir)
	require.NoError(t, err)
	_, err = r.Lookup(triVert)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte("version: 99\n"), 0o644))
	_, err = Open(dir)
	assert.Error(t, err)
}

func TestIdentifierString(t *testing.T) {
	assert.Equal(t, "dEQP-VK.api.smoke.triangle / vert", triVert.String())
}
