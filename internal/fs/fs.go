// Package fs provides filesystem abstractions for reading a source tree from local disk or a git ref.
package fs

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Regular bool
	Size    int64
}

// DirEntry represents a single directory entry.
//
// Symlink is set when the entry is a symbolic link whose target has not been
// resolved; callers that care about the target call Stat on it.
type DirEntry struct {
	Name    string
	IsDir   bool
	Regular bool
	Symlink bool
}

// FileSystem abstracts file operations so the scanner and the dump writer can
// work with either the local filesystem or a git object database. Paths are
// relative to the source root and use forward slashes; "" names the root.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (FileInfo, error)
	ReadDir(path string) ([]DirEntry, error)
}

// Join appends name to the forward-slash relative directory dir.
func Join(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}
