package scan

import (
	"errors"
	"fmt"
	"sort"

	mfs "github.com/CageChen/repodump/internal/fs"
)

// ErrNotDir is returned when the scan root is not a directory.
var ErrNotDir = errors.New("not a directory")

// ReasonUnreadable marks a subdirectory whose listing failed. The directory
// is skipped and the scan continues.
const ReasonUnreadable Reason = "unreadable directory"

// File is an entry that passed every rule.
type File struct {
	// RelPath is relative to the scan root and always uses forward slashes.
	RelPath string
}

// SkipFunc observes entries left out of a scan.
type SkipFunc func(relPath string, reason Reason)

// Scan walks fsys from its root, keeps the entries accepted by rules and
// returns them sorted by RelPath. onSkip may be nil.
func Scan(fsys mfs.FileSystem, rules *Rules, onSkip SkipFunc) ([]File, error) {
	info, err := fsys.Stat("")
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir {
		return nil, fmt.Errorf("root %s: %w", info.Name, ErrNotDir)
	}

	s := &scanner{fsys: fsys, rules: rules, onSkip: onSkip}
	if err := s.walk(""); err != nil {
		return nil, err
	}

	sort.Slice(s.files, func(i, j int) bool {
		return s.files[i].RelPath < s.files[j].RelPath
	})
	return s.files, nil
}

type scanner struct {
	fsys   mfs.FileSystem
	rules  *Rules
	onSkip SkipFunc
	files  []File
}

func (s *scanner) walk(dir string) error {
	entries, err := s.fsys.ReadDir(dir)
	if err != nil {
		if dir == "" {
			return fmt.Errorf("read root: %w", err)
		}
		s.skip(dir, ReasonUnreadable)
		return nil
	}

	for _, entry := range entries {
		rel := mfs.Join(dir, entry.Name)

		if entry.IsDir {
			if s.rules.SkipDir(entry.Name) {
				s.skip(rel, ReasonExcludedDir)
				continue
			}
			if err := s.walk(rel); err != nil {
				return err
			}
			continue
		}

		regular := entry.Regular
		if entry.Symlink {
			// Links to regular files are dumped; links to directories are
			// not descended into.
			info, err := s.fsys.Stat(rel)
			regular = err == nil && info.Regular
		}

		if reason := s.rules.Check(rel, regular); reason != ReasonNone {
			s.skip(rel, reason)
			continue
		}
		s.files = append(s.files, File{RelPath: rel})
	}
	return nil
}

func (s *scanner) skip(rel string, reason Reason) {
	if s.onSkip != nil {
		s.onSkip(rel, reason)
	}
}
