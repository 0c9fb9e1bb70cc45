package watcher

import (
	"context"

	"github.com/conneroisu/hotserve/internal/build"
	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/logging"
)

// Rebuilder runs one hot-reload build. *build.Pipeline implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context, changes []string) build.Outcome
}

// Reloader is the single background consumer of a Trigger. Because it
// builds on its own goroutine, at most one rebuild is in flight and
// requests arriving meanwhile merge into the next cycle.
type Reloader struct {
	rebuilder Rebuilder
	trigger   *Trigger
	watcher   *FileWatcher
	logger    logging.Logger
}

// NewReloader creates a reloader. watcher may be nil; when set, its roots
// are re-synced from every successfully built config.
func NewReloader(rebuilder Rebuilder, trigger *Trigger, watcher *FileWatcher, logger logging.Logger) *Reloader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reloader{
		rebuilder: rebuilder,
		trigger:   trigger,
		watcher:   watcher,
		logger:    logger.WithComponent("reloader"),
	}
}

// Run processes triggers until ctx is cancelled. Cancellation is only
// observed between builds; a build that has started runs to completion.
func (r *Reloader) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.trigger.C():
		}

		changes := r.trigger.Drain()
		r.logger.Debug(ctx, "Rebuilding", "changes", changes)

		out := r.rebuilder.Rebuild(context.WithoutCancel(ctx), changes)
		if out.Succeeded() && r.watcher != nil && out.Snapshot != nil {
			for _, err := range r.watcher.SetRoots(config.WatchRoots(out.Snapshot.Config)) {
				r.logger.Warn(ctx, err, "Hot reload unavailable for path")
			}
		}
	}
}

// HotReloader bundles the file watcher, trigger and reloader for one
// serving process.
type HotReloader struct {
	watcher  *FileWatcher
	trigger  *Trigger
	reloader *Reloader
	logger   logging.Logger
}

// NewHotReloader subscribes to the watch roots of cfg. Roots that cannot be
// watched are logged and skipped.
func NewHotReloader(rebuilder Rebuilder, cfg *config.Config, logger logging.Logger) (*HotReloader, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	fw, err := NewFileWatcher(cfg.Runtime.Debounce, logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(NoiseFilter)

	trigger := NewTrigger()
	fw.AddHandler(func(events []ChangeEvent) error {
		trigger.Notify(Paths(events)...)
		return nil
	})

	for _, err := range fw.SetRoots(config.WatchRoots(cfg)) {
		logger.Warn(context.Background(), err, "Hot reload unavailable for path")
	}

	return &HotReloader{
		watcher:  fw,
		trigger:  trigger,
		reloader: NewReloader(rebuilder, trigger, fw, logger),
		logger:   logger,
	}, nil
}

// Trigger exposes the rebuild signal, for manual rebuild requests.
func (h *HotReloader) Trigger() *Trigger {
	return h.trigger
}

// Run watches and rebuilds until ctx is cancelled, then releases the
// watcher.
func (h *HotReloader) Run(ctx context.Context) error {
	if err := h.watcher.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := h.watcher.Stop(); err != nil {
			h.logger.Warn(context.Background(), err, "Stopping file watcher")
		}
	}()

	return h.reloader.Run(ctx)
}
