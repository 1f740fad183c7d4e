package syncer

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay batches bursts of filesystem events into one sync.
const debounceDelay = 2 * time.Second

// ScheduledSync runs SyncAll on a fixed interval in a single supervisor
// goroutine. Ticks that arrive while a sync is in progress are skipped,
// never queued.
type ScheduledSync struct {
	syncer *Syncer
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduled wraps a syncer with interval scheduling.
func NewScheduled(s *Syncer) *ScheduledSync {
	return &ScheduledSync{syncer: s, logger: s.logger}
}

// Start launches the supervisor. Calling Start while running is a no-op.
func (ss *ScheduledSync) Start(interval time.Duration) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ss.cancel = cancel
	done := make(chan struct{})
	ss.done = done

	go ss.run(ctx, interval, done)
	ss.logger.Info("scheduled sync started", "interval", interval)
}

// Stop cancels the supervisor and waits for it to exit.
func (ss *ScheduledSync) Stop() {
	ss.mu.Lock()
	cancel := ss.cancel
	done := ss.done
	ss.cancel = nil
	ss.done = nil
	ss.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	ss.logger.Info("scheduled sync stopped")
}

func (ss *ScheduledSync) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, skipped, err := ss.syncer.trySync(ctx, false)
			if skipped {
				ss.logger.Debug("sync tick skipped, run in progress")
				continue
			}
			if err != nil {
				ss.logger.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// Watch reacts to filesystem changes under the standards root, running a
// sync after a debounce window. It blocks until the context is
// cancelled.
func (s *Syncer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the root and every non-hidden subdirectory; fsnotify is not
	// recursive on its own.
	addDirs := func() {
		_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != s.root && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				_ = watcher.Add(path)
			}
			return nil
		})
	}
	addDirs()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	s.logger.Info("watching standards root", "root", s.root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need their own watch.
				addDirs()
			}
			if strings.HasSuffix(name, ".md") || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) {
				schedule()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case <-fire:
			if _, skipped, err := s.trySync(ctx, false); err != nil {
				s.logger.Error("watch-triggered sync failed", "error", err)
			} else if skipped {
				// A run is active; it will pick up these changes or the
				// next event will retrigger.
				schedule()
			}
		}
	}
}
