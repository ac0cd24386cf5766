// Package scan walks a source tree, applies the inclusion rules and returns
// the surviving files in deterministic order.
package scan

import (
	"path"
	"strings"
)

// DefaultOutput is the dump file name used when none is configured. It is
// always excluded, whatever the configured output name is.
const DefaultOutput = "repo_dump.txt"

// Reason explains why an entry was left out of the dump.
type Reason string

// Exclusion reasons, in the order the rules are evaluated.
const (
	ReasonNone         Reason = ""
	ReasonNotRegular   Reason = "not a regular file"
	ReasonExcludedDir  Reason = "inside an excluded directory"
	ReasonExcludedFile Reason = "excluded path"
	ReasonDeniedExt    Reason = "binary extension"
	ReasonUnknownExt   Reason = "extension not allowlisted"
)

// ExcludeDirs are directory names skipped at any depth.
var ExcludeDirs = []string{
	".git", "__pycache__", ".pytest_cache", ".mypy_cache",
	".venv", "venv", "node_modules", ".idea", ".vscode",
}

// IncludeExts are the text-ish extensions that are dumped.
var IncludeExts = []string{
	".py", ".md", ".txt", ".json", ".yaml", ".yml",
	".toml", ".ini", ".cfg", ".csv", ".tsv",
	".sh", ".bat", ".ps1",
	".html", ".css", ".js",
	".utf",
}

// ExcludeExts are always skipped, even if an allowlist entry would match.
var ExcludeExts = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico",
	".pdf", ".zip", ".tar", ".gz", ".tgz", ".bz2", ".7z", ".rar",
	".exe", ".dll", ".so", ".dylib",
	".mp3", ".wav", ".mp4", ".mov", ".mkv",
	".ttf", ".otf", ".woff", ".woff2",
}

// Rules is the frozen filter state for one run. Build it with NewRules; it
// is never modified afterwards and is safe to share.
type Rules struct {
	output       string
	excludeDirs  map[string]struct{}
	includeExts  map[string]struct{}
	excludeExts  map[string]struct{}
	excludeFiles map[string]struct{}
}

// NewRules merges the built-in sets with the output name and any extra
// relative paths to exclude. Backslashes in extra paths are converted to
// forward slashes.
func NewRules(output string, extra ...string) *Rules {
	r := &Rules{
		output:       NormalizePath(output),
		excludeDirs:  toSet(ExcludeDirs),
		includeExts:  toSet(IncludeExts),
		excludeExts:  toSet(ExcludeExts),
		excludeFiles: toSet([]string{DefaultOutput}),
	}
	r.excludeFiles[r.output] = struct{}{}
	for _, p := range extra {
		if p = NormalizePath(p); p != "" {
			r.excludeFiles[p] = struct{}{}
		}
	}
	return r
}

// Output returns the normalized output path the rules exclude.
func (r *Rules) Output() string {
	return r.output
}

// ExcludedFiles returns the exact relative paths the rules exclude, unordered.
func (r *Rules) ExcludedFiles() []string {
	files := make([]string, 0, len(r.excludeFiles))
	for f := range r.excludeFiles {
		files = append(files, f)
	}
	return files
}

// SkipDir reports whether a directory with the given name is pruned.
func (r *Rules) SkipDir(name string) bool {
	_, ok := r.excludeDirs[name]
	return ok
}

// Check evaluates the rules for the entry at relPath and returns the first
// matching exclusion reason, or ReasonNone if the file is included.
func (r *Rules) Check(relPath string, regular bool) Reason {
	if !regular {
		return ReasonNotRegular
	}

	for _, part := range strings.Split(relPath, "/") {
		if r.SkipDir(part) {
			return ReasonExcludedDir
		}
	}

	if relPath == r.output {
		return ReasonExcludedFile
	}
	if _, ok := r.excludeFiles[relPath]; ok {
		return ReasonExcludedFile
	}

	ext := strings.ToLower(Ext(relPath))
	if _, ok := r.excludeExts[ext]; ok {
		return ReasonDeniedExt
	}
	if ext != "" {
		if _, ok := r.includeExts[ext]; !ok {
			return ReasonUnknownExt
		}
	}

	return ReasonNone
}

// Include reports whether the regular file at relPath passes every rule.
func (r *Rules) Include(relPath string) bool {
	return r.Check(relPath, true) == ReasonNone
}

// NormalizePath converts p to a clean forward-slash relative path.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	if p = path.Clean(p); p == "." {
		return ""
	}
	return p
}

// Ext returns the extension of the last element of p, including the dot.
// A leading dot does not start an extension and neither does a trailing one,
// so ".gitignore" and "notes." have none.
func Ext(p string) string {
	name := path.Base(p)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
