package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/CageChen/repodump/internal/config"
	"github.com/CageChen/repodump/internal/dump"
	mfs "github.com/CageChen/repodump/internal/fs"
	"github.com/CageChen/repodump/internal/logger"
	"github.com/CageChen/repodump/internal/scan"
	"github.com/CageChen/repodump/internal/watcher"
)

// dumper runs one scan-and-write cycle per call. Calls are serialized.
type dumper struct {
	cfg   *config.Config
	fsys  mfs.FileSystem
	rules *scan.Rules
	log   *logger.ConsoleLogger
	out   io.Writer
	mu    sync.Mutex
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if path := cfg.GetConfigFilePath(); path != "" {
		log.LogInfo(fmt.Sprintf("config file: %s", path))
	}

	fsys, err := cfg.FileSystem()
	if err != nil {
		return err
	}

	d := &dumper{
		cfg:   cfg,
		fsys:  fsys,
		rules: cfg.Rules(),
		log:   log,
		out:   cmd.OutOrStdout(),
	}
	if err := d.dump(); err != nil {
		return err
	}
	if !cfg.Watch {
		return nil
	}
	return d.watch(ctx)
}

func (d *dumper) dump() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var onSkip scan.SkipFunc
	if d.log.Enabled("debug") {
		onSkip = func(rel string, reason scan.Reason) {
			d.log.LogDebug(fmt.Sprintf("skip %s: %s", rel, reason))
		}
	}

	files, err := scan.Scan(d.fsys, d.rules, onSkip)
	if err != nil {
		return fmt.Errorf("scan %s: %w", d.cfg.Root, err)
	}

	outPath := d.cfg.OutPath()
	res, err := dump.ToFile(outPath, d.fsys, files)
	if err != nil {
		return err
	}
	for _, f := range res.Failed {
		d.log.LogDebug(fmt.Sprintf("unreadable %s: %v", f.RelPath, f.Err))
	}

	fmt.Fprintf(d.out, "Wrote %s (%d files)\n", outPath, res.Files)
	return nil
}

// watch rewrites the dump after every debounced batch of changes until ctx
// is cancelled. A failed re-dump is logged and does not stop watching.
func (d *dumper) watch(ctx context.Context) error {
	w, err := watcher.New(d.cfg.Root, d.rules, d.cfg.Debounce, d.log)
	if err != nil {
		return err
	}
	w.OnChange(func(events []watcher.Event) {
		d.log.LogInfo(fmt.Sprintf("%d change(s), rewriting dump", len(events)))
		if err := d.dump(); err != nil {
			d.log.LogError(err.Error())
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	d.log.LogInfo(fmt.Sprintf("watching %s", d.cfg.Root))
	<-ctx.Done()
	return nil
}
