// Package filelock serializes writers of the same dump file across processes
// and replaces the file atomically so readers never see a partial dump.
package filelock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock wraps a flock file lock for coordinating access to files.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock for the given path.
// The lock file will be created at the specified path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// ForTarget returns a lock guarding target. The lock file lives in the
// system temp directory, keyed by the target's absolute path, so it never
// lands inside the tree being dumped.
func ForTarget(target string) (*FileLock, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve lock target %s: %w", target, err)
	}
	sum := sha256.Sum256([]byte(abs))
	name := "repodump-" + hex.EncodeToString(sum[:8]) + ".lock"
	return NewFileLock(filepath.Join(os.TempDir(), name)), nil
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires an exclusive lock on the file, blocking until the lock is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire an exclusive lock on the file without blocking.
// Returns true if the lock was acquired, false if the lock is held by another process.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AtomicFile is a write-only file that replaces its target on Commit.
//
// Content goes to a temporary file in the target's directory, which keeps the
// final rename on one filesystem. The directory itself is never created.
type AtomicFile struct {
	file   *os.File
	target string
	done   bool
}

// Create opens a temporary file next to target. It fails if target's
// directory does not exist or is not writable.
func Create(target string) (*AtomicFile, error) {
	dir := filepath.Dir(target)
	f, err := os.CreateTemp(dir, ".repodump-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for %s: %w", target, err)
	}
	return &AtomicFile{file: f, target: target}, nil
}

// Write appends p to the temporary file.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.file.Write(p)
}

// Name returns the temporary file path.
func (a *AtomicFile) Name() string {
	return a.file.Name()
}

// Commit flushes the temporary file and renames it over the target.
// On error the temporary file is removed and the target is left unchanged.
func (a *AtomicFile) Commit() error {
	if a.done {
		return fmt.Errorf("atomic file for %s already closed", a.target)
	}
	a.done = true
	tempPath := a.file.Name()

	if err := a.file.Sync(); err != nil {
		a.file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := a.file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, a.target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file to %s: %w", a.target, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.file.Close()
	return os.Remove(a.file.Name())
}
