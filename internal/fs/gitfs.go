package fs

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Git object modes as printed by ls-tree.
const (
	modeTree      = "040000"
	modeSymlink   = "120000"
	modeSubmodule = "160000"
)

// GitFS implements FileSystem by reading from a git ref (branch, tag, or commit).
// Paths are relative to repoPath, which may be a subdirectory of the work tree.
type GitFS struct {
	repoPath string
	ref      string
}

// NewGitFS creates a GitFS that reads files from the given ref in the repository at repoPath.
func NewGitFS(repoPath, ref string) *GitFS {
	return &GitFS{repoPath: repoPath, ref: ref}
}

// Ref returns the git ref the GitFS reads from.
func (g *GitFS) Ref() string {
	return g.ref
}

func (g *GitFS) git(args ...string) ([]byte, error) {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// Verify checks that the ref resolves to a tree.
func (g *GitFS) Verify() error {
	if _, err := g.git("rev-parse", "--verify", "--quiet", g.ref+"^{tree}"); err != nil {
		return fmt.Errorf("resolve git ref %q in %s: %w", g.ref, g.repoPath, err)
	}
	return nil
}

// ReadFile reads the contents of the blob at the given path from the git ref.
func (g *GitFS) ReadFile(path string) ([]byte, error) {
	if path == "" || path == "." {
		return nil, fmt.Errorf("cannot read directory as file")
	}
	// "<ref>:./<path>" resolves relative to repoPath rather than the work tree top.
	out, err := g.git("cat-file", "blob", g.ref+":./"+path)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "not a valid object name") {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	return out, nil
}

// Stat returns metadata for the file or directory at the given path in the git ref.
func (g *GitFS) Stat(path string) (FileInfo, error) {
	if path == "" || path == "." {
		if err := g.Verify(); err != nil {
			return FileInfo{}, os.ErrNotExist
		}
		return FileInfo{Name: g.ref, IsDir: true}, nil
	}

	entries, err := g.lsTree(path)
	if err != nil || len(entries) == 0 {
		return FileInfo{}, os.ErrNotExist
	}
	e := entries[0]
	return FileInfo{
		Name:    baseName(e.name),
		IsDir:   e.mode == modeTree,
		Regular: e.regular(),
		Size:    e.size,
	}, nil
}

// ReadDir lists the immediate children of the directory at the given path in the git ref.
func (g *GitFS) ReadDir(path string) ([]DirEntry, error) {
	lsPath := ""
	if path != "" && path != "." {
		lsPath = path + "/"
	}

	entries, err := g.lsTree(lsPath)
	if err != nil {
		return nil, os.ErrNotExist
	}

	result := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, DirEntry{
			Name:    baseName(e.name),
			IsDir:   e.mode == modeTree,
			Regular: e.regular(),
		})
	}
	return result, nil
}

type treeEntry struct {
	mode string
	kind string
	size int64
	name string
}

func (e treeEntry) regular() bool {
	return e.kind == "blob" && e.mode != modeSymlink && e.mode != modeSubmodule
}

// lsTree runs "git ls-tree -z --long" and parses its NUL-separated records:
// "<mode> <type> <object> <size>\t<name>".
func (g *GitFS) lsTree(path string) ([]treeEntry, error) {
	args := []string{"ls-tree", "-z", "--long", g.ref}
	if path != "" {
		args = append(args, path)
	}
	out, err := g.git(args...)
	if err != nil {
		return nil, err
	}

	var entries []treeEntry
	for _, rec := range strings.Split(string(out), "\x00") {
		if rec == "" {
			continue
		}
		tabIdx := strings.IndexByte(rec, '\t')
		if tabIdx < 0 {
			continue
		}
		fields := strings.Fields(rec[:tabIdx])
		if len(fields) < 4 {
			continue
		}
		// Size is "-" for trees and submodules.
		size, _ := strconv.ParseInt(fields[3], 10, 64)
		entries = append(entries, treeEntry{
			mode: fields[0],
			kind: fields[1],
			size: size,
			name: rec[tabIdx+1:],
		})
	}
	return entries, nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
