package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CageChen/repodump/internal/config"
	"github.com/CageChen/repodump/internal/scan"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// options holds raw flag values before they are merged into a config.Config.
type options struct {
	configFile string
	root       string
	out        string
	exclude    []string
	ref        string
	watch      bool
	logLevel   string
}

// NewRootCommand creates and returns the repodump command
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "repodump",
		Short: "Concatenate a repository's text files into one dump file",
		Long: `repodump walks a directory tree and writes the content of every text-ish
file into a single output file, each one preceded by a marker line holding
its path relative to the root:

  ===== path/to/file =====

Version-control, cache, virtual-environment and editor directories are
skipped, as are binary and media files and any extension not on the text
allowlist. Files are written in lexicographic order of their relative path,
so an unchanged tree always produces the same dump.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.root, "root", ".", "directory to dump")
	flags.StringVar(&opts.out, "out", scan.DefaultOutput, "output file name, relative to root")
	flags.StringArrayVar(&opts.exclude, "exclude", nil, "relative path to exclude (repeatable)")
	flags.StringVar(&opts.configFile, "config", "", "YAML file with default settings")
	flags.StringVar(&opts.ref, "ref", "", "dump the tree at this git ref instead of the working tree")
	flags.BoolVar(&opts.watch, "watch", false, "keep running and rewrite the dump when files change")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")

	return cmd
}

// buildConfig loads the optional config file and overlays the flags the user
// set explicitly. Exclusions from both sources are combined.
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Root = opts.root
	}
	if flags.Changed("out") {
		cfg.Out = opts.out
	}
	if flags.Changed("ref") {
		cfg.Ref = opts.ref
	}
	if flags.Changed("watch") {
		cfg.Watch = opts.watch
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	cfg.Exclude = append(cfg.Exclude, opts.exclude...)

	if cfg.Watch && cfg.Ref != "" {
		return nil, fmt.Errorf("--watch reads the working tree and cannot be combined with --ref %s", cfg.Ref)
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}
