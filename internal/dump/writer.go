// Package dump serializes scanned files into the single-file dump format:
//
//	\n===== <relative/path> =====\n<content>
//
// repeated for every file in scan order.
package dump

import (
	"bufio"
	"fmt"
	"io"

	"github.com/CageChen/repodump/internal/filelock"
	mfs "github.com/CageChen/repodump/internal/fs"
	"github.com/CageChen/repodump/internal/scan"
)

// Failure records a file whose content could not be dumped.
type Failure struct {
	RelPath string
	Err     error
}

// Result summarizes a dump.
type Result struct {
	// Files is the number of files enumerated, including failed ones.
	Files  int
	Failed []Failure
}

// Writer writes files from a FileSystem to a destination stream.
type Writer struct {
	out  *bufio.Writer
	fsys mfs.FileSystem
}

// NewWriter returns a Writer that reads from fsys and writes to w.
func NewWriter(w io.Writer, fsys mfs.FileSystem) *Writer {
	return &Writer{out: bufio.NewWriter(w), fsys: fsys}
}

// Write dumps files in the given order and flushes the destination.
// Per-file read or decode failures are written inline and collected in the
// result; only destination write errors are returned.
func (d *Writer) Write(files []scan.File) (Result, error) {
	res := Result{Files: len(files)}
	for _, f := range files {
		failure, err := d.writeFile(f)
		if err != nil {
			return res, fmt.Errorf("write %s: %w", f.RelPath, err)
		}
		if failure != nil {
			res.Failed = append(res.Failed, *failure)
		}
	}
	if err := d.out.Flush(); err != nil {
		return res, fmt.Errorf("flush dump: %w", err)
	}
	return res, nil
}

func (d *Writer) writeFile(f scan.File) (*Failure, error) {
	if _, err := fmt.Fprintf(d.out, "\n===== %s =====\n", f.RelPath); err != nil {
		return nil, err
	}

	text, readErr := d.readText(f.RelPath)
	if readErr != nil {
		if _, err := fmt.Fprintf(d.out, "[[SKIPPED: %v]]\n", readErr); err != nil {
			return nil, err
		}
		return &Failure{RelPath: f.RelPath, Err: readErr}, nil
	}

	if _, err := d.out.WriteString(text); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Writer) readText(rel string) (string, error) {
	data, err := d.fsys.ReadFile(rel)
	if err != nil {
		return "", err
	}
	return Decode(data)
}

// ToFile dumps files into the file at path.
//
// Concurrent dumps to the same path are serialized with a file lock. The
// content is streamed to a temporary file that replaces path only after every
// file has been written, so a failed dump leaves any previous output intact.
// Failing to create the destination is returned as an error.
func ToFile(path string, fsys mfs.FileSystem, files []scan.File) (Result, error) {
	lock, err := filelock.ForTarget(path)
	if err != nil {
		return Result{}, err
	}
	if err := lock.Lock(); err != nil {
		return Result{}, err
	}
	defer lock.Unlock()

	out, err := filelock.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("open output: %w", err)
	}

	res, err := NewWriter(out, fsys).Write(files)
	if err != nil {
		_ = out.Abort()
		return res, err
	}
	if err := out.Commit(); err != nil {
		return res, fmt.Errorf("commit output: %w", err)
	}
	return res, nil
}
