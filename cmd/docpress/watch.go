package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docpress/internal/app"
	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/parser"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		outDir   string
		settle   time.Duration
		existing bool
		ef       engineFlags
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Compress documents as they land in a directory",
		Long: `Watch a directory and compress every supported document written to it.

Each document gets its own folder under the output directory, named after
the file without its extension. A file is processed once it has been quiet
for the settle period, so large copies are not read half-written.

Examples:
  docpress watch inbox
  docpress watch inbox -o reports --existing --settle 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ef.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := opts.logger(cmd.ErrOrStderr())
			claude, err := app.NewClaude(cfg, log)
			if err != nil {
				return err
			}
			if claude != nil {
				defer claude.Close()
			}
			engine, err := app.NewEngine(cfg, log, claude)
			if err != nil {
				return err
			}

			f, _ := parseFormat(opts.format)
			w := &watcher{
				engine: engine,
				outDir: outDir,
				settle: settle,
				log:    log,
				out:    cmd.OutOrStdout(),
				format: f,
			}
			if existing {
				w.existing(cmd.Context(), args[0])
			}
			return w.run(cmd.Context(), args[0])
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "outputs", "output directory")
	cmd.Flags().DurationVar(&settle, "settle", time.Second, "quiet period before a changed file is processed")
	cmd.Flags().BoolVar(&existing, "existing", false, "also compress documents already in DIR")
	ef.register(cmd)
	return cmd
}

// watcher compresses files from one directory, one at a time.
type watcher struct {
	engine *compress.Engine
	outDir string
	settle time.Duration
	log    *slog.Logger
	out    io.Writer
	format outputFormat

	// Test hooks.
	onReady func()
	onDone  func(path string, err error)

	mu sync.Mutex // guards out
}

// run blocks until ctx is cancelled or the watcher fails.
func (w *watcher) run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Info("watching", "dir", dir, "output", w.outDir)
	if w.onReady != nil {
		w.onReady()
	}

	ready := make(chan string)
	done := make(chan struct{})
	pending := make(map[string]*time.Timer)
	defer func() {
		close(done)
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !watchable(ev.Name) {
				continue
			}
			if t, ok := pending[ev.Name]; ok {
				t.Stop()
			}
			path := ev.Name
			pending[path] = time.AfterFunc(w.settle, func() {
				select {
				case ready <- path:
				case <-done:
				}
			})

		case path := <-ready:
			delete(pending, path)
			w.process(ctx, path)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// existing compresses the supported files already present in dir.
func (w *watcher) existing(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Warn("list existing documents", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() || !watchable(e.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(dir, e.Name()))
	}
}

func (w *watcher) process(ctx context.Context, path string) {
	err := w.compress(ctx, path)
	if err != nil {
		w.log.Error("compress failed", "file", path, "error", err)
	}
	if w.onDone != nil {
		w.onDone(path, err)
	}
}

func (w *watcher) compress(ctx context.Context, path string) error {
	run, err := w.engine.CompressFile(ctx, path)
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	dir := filepath.Join(w.outDir, strings.TrimSuffix(base, filepath.Ext(base)))
	files, err := writeOutputs(dir, run.Report)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return printTo(w.out, w.format, summarize(run.Report, files))
}

// watchable skips unsupported types and editor temp files.
func watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return parser.IsSupportedExtension(base)
}
