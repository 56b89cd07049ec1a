package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/checker"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch FILE...",
		Short: "Re-check model files whenever they change",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch,
	}
	addRunFlags(cmd)
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "quiet period after a change before checking")
	cmd.Flags().Bool("initial", true, "check every file once at startup")
	return cmd
}

func runWatch(cmd *cobra.Command, files []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Close()
	sched, err := env.scheduler(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	debounce, _ := cmd.Flags().GetDuration("debounce")
	out := cmd.OutOrStdout()
	fw, err := newFileWatcher(files, debounce, env.logger.Entry(), func(ctx context.Context, changed []string) error {
		report, err := sched.Run(ctx, checker.Request{Files: changed})
		if err != nil {
			return err
		}
		printReport(out, report)
		return nil
	})
	if err != nil {
		return err
	}

	// Directories are watched so editors that replace the file on save
	// are still noticed.
	for _, dir := range fw.dirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	if initial, _ := cmd.Flags().GetBool("initial"); initial {
		if err := fw.run(ctx, fw.files()); err != nil {
			return err
		}
	}
	env.logger.WithField("files", len(files)).Info("watching for changes")
	return fw.loop(ctx, watcher.Events, watcher.Errors)
}

// fileWatcher collects change events for a fixed set of files and runs a
// check once no event arrived for the debounce period.
type fileWatcher struct {
	watched  map[string]bool
	debounce time.Duration
	logger   logrus.FieldLogger
	run      func(ctx context.Context, files []string) error
}

func newFileWatcher(files []string, debounce time.Duration, logger logrus.FieldLogger, run func(context.Context, []string) error) (*fileWatcher, error) {
	w := &fileWatcher{
		watched:  make(map[string]bool, len(files)),
		debounce: debounce,
		logger:   logger,
		run:      run,
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.watched[abs] = true
	}
	return w, nil
}

func (w *fileWatcher) files() []string {
	out := make([]string, 0, len(w.watched))
	for f := range w.watched {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (w *fileWatcher) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range w.files() {
		if d := filepath.Dir(f); !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func (w *fileWatcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !w.watched[abs] {
				continue
			}
			pending[abs] = true
			timer.Reset(w.debounce)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("file watcher error")

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for f := range pending {
				changed = append(changed, f)
			}
			sort.Strings(changed)
			clear(pending)
			if len(changed) == 0 {
				continue
			}
			w.logger.WithField("files", changed).Info("model files changed")
			if err := w.run(ctx, changed); err != nil {
				w.logger.WithError(err).Error("check run failed")
			}
		}
	}
}
