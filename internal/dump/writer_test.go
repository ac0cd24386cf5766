package dump

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mfs "github.com/CageChen/repodump/internal/fs"
	"github.com/CageChen/repodump/internal/scan"
)

// memFS is an in-memory FileSystem holding flat files.
type memFS struct {
	files map[string][]byte
	errs  map[string]error
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	if err, ok := m.errs[path]; ok {
		return nil, err
	}
	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (m *memFS) Stat(path string) (mfs.FileInfo, error) {
	return mfs.FileInfo{Name: path, IsDir: path == "", Regular: path != ""}, nil
}

func (m *memFS) ReadDir(string) ([]mfs.DirEntry, error) {
	return nil, nil
}

func files(paths ...string) []scan.File {
	out := make([]scan.File, len(paths))
	for i, p := range paths {
		out[i] = scan.File{RelPath: p}
	}
	return out
}

func TestWriter_Format(t *testing.T) {
	fsys := &memFS{files: map[string][]byte{
		"a.txt":   []byte("alpha\n"),
		"b.txt":   []byte("no trailing newline"),
		"c/a.txt": []byte(""),
	}}

	var buf bytes.Buffer
	res, err := NewWriter(&buf, fsys).Write(files("a.txt", "b.txt", "c/a.txt"))
	require.NoError(t, err)

	want := "\n===== a.txt =====\nalpha\n" +
		"\n===== b.txt =====\nno trailing newline" +
		"\n===== c/a.txt =====\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 3, res.Files)
	assert.Empty(t, res.Failed)
}

func TestWriter_ContinuesAfterFailures(t *testing.T) {
	fsys := &memFS{
		files: map[string][]byte{
			"after.txt":  []byte("still here\n"),
			"secret.txt": []byte("\x00\x01\x02\x03binary\x00"),
		},
		errs: map[string]error{
			"locked.txt": errors.New("permission denied"),
		},
	}

	var buf bytes.Buffer
	res, err := NewWriter(&buf, fsys).Write(files("locked.txt", "secret.txt", "after.txt"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "\n===== locked.txt =====\n[[SKIPPED: permission denied]]\n")
	assert.Contains(t, out, "\n===== secret.txt =====\n[[SKIPPED: binary content")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n===== after.txt =====\nstill here\n")))

	assert.Equal(t, 3, res.Files)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "locked.txt", res.Failed[0].RelPath)
	assert.Equal(t, "secret.txt", res.Failed[1].RelPath)
	assert.ErrorIs(t, res.Failed[1].Err, ErrBinary)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriter_DestinationErrorIsFatal(t *testing.T) {
	fsys := &memFS{files: map[string][]byte{"a.txt": []byte("a")}}

	_, err := NewWriter(failingWriter{}, fsys).Write(files("a.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repo_dump.txt"), []byte("stale"), 0o644))

	out := filepath.Join(dir, "repo_dump.txt")
	res, err := ToFile(out, mfs.NewLocalFS(dir), files("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\n===== a.txt =====\nA\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestToFile_MissingDirectoryIsFatal(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nope", "repo_dump.txt")

	_, err := ToFile(out, mfs.NewLocalFS(dir), nil)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "nope"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestToFile_Deterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.md"), []byte("# x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "y.json"), []byte("{}"), 0o644))
	fsys := mfs.NewLocalFS(dir)
	list := files("x.md", "y.json")

	first := filepath.Join(dir, "one.txt")
	second := filepath.Join(dir, "two.txt")
	_, err := ToFile(first, fsys, list)
	require.NoError(t, err)
	_, err = ToFile(second, fsys, list)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
