// Package config manages the YAML configuration file and the effective,
// immutable run configuration built from it and the command line.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	mfs "github.com/CageChen/repodump/internal/fs"
	"github.com/CageChen/repodump/internal/scan"
)

// Config holds all configuration options for repodump
type Config struct {
	Root     string        `yaml:"root"`
	Out      string        `yaml:"out"`
	Exclude  []string      `yaml:"exclude,omitempty"`
	Ref      string        `yaml:"ref,omitempty"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
	LogLevel string        `yaml:"log_level"`

	// Internal: path of the file the config was read from
	configPath string
	// Internal: executable path relative to Root, set by Resolve
	self string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Root:     ".",
		Out:      scan.DefaultOutput,
		Debounce: 300 * time.Millisecond,
		LogLevel: "warn",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if err := cfg.loadFromFile(path); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.configPath = path
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// GetConfigFilePath returns the path to the config file, or "" if none was read
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// Resolve makes Root absolute, normalizes exclusions to forward slashes and
// records the running executable's path if it lies under Root. It is called
// once after all sources have been merged; the Config is not modified after.
func (c *Config) Resolve() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", c.Root, err)
	}
	// A root that does not exist is reported by the scan.
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}
	c.Root = root

	excludes := make([]string, 0, len(c.Exclude))
	for _, e := range c.Exclude {
		if e = scan.NormalizePath(e); e != "" {
			excludes = append(excludes, e)
		}
	}
	c.Exclude = excludes

	if exe, err := os.Executable(); err == nil {
		c.self = relativeTo(c.Root, exe)
	}
	return nil
}

// OutPath returns the absolute path of the dump file.
func (c *Config) OutPath() string {
	if filepath.IsAbs(c.Out) {
		return filepath.Clean(c.Out)
	}
	return filepath.Join(c.Root, filepath.FromSlash(c.Out))
}

// Rules builds the frozen filter rules for this configuration.
func (c *Config) Rules() *scan.Rules {
	out := relativeTo(c.Root, c.OutPath())
	if out == "" {
		out = scan.NormalizePath(c.Out)
	}
	extra := append([]string{}, c.Exclude...)
	if c.self != "" {
		extra = append(extra, c.self)
	}
	return scan.NewRules(out, extra...)
}

// FileSystem returns the source tree to dump: the git ref when Ref is set,
// the directory at Root otherwise.
func (c *Config) FileSystem() (mfs.FileSystem, error) {
	if c.Ref == "" {
		return mfs.NewLocalFS(c.Root), nil
	}
	g := mfs.NewGitFS(c.Root, c.Ref)
	if err := g.Verify(); err != nil {
		return nil, err
	}
	return g, nil
}

// relativeTo returns target relative to root in forward-slash form, or ""
// if target is not under root.
func relativeTo(root, target string) string {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		target = real
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}
