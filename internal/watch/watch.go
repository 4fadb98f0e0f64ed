// Package watch recalibrates a machine when its recipe file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotExist is returned by New when the watched file is missing.
var ErrNotExist = errors.New("watch: file does not exist")

const defaultDebounce = 100 * time.Millisecond

// Reloader re-reads its configuration.
type Reloader interface {
	Recalibrate() error
}

// Watcher triggers a Reloader after writes to one file. Bursts of events
// within the debounce window collapse into a single reload.
type Watcher struct {
	path     string
	reload   Reloader
	log      *zap.Logger
	debounce time.Duration
	onReload func(error)
	fsw      *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithDebounce sets how long to wait for events to settle before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnReload sets a callback invoked after each reload attempt with its result.
func WithOnReload(fn func(error)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// New prepares a watch on path. It watches the parent directory so that
// editors which save by rename are still seen.
func New(path string, r Reloader, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("watch: resolving %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, abs)
		}
		return nil, fmt.Errorf("watch: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch: adding %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		reload:   r,
		log:      zap.NewNop(),
		debounce: defaultDebounce,
		onReload: func(error) {},
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run processes file events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !isChange(event) {
				continue
			}
			w.log.Debug("recipe file event", zap.String("path", w.path), zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.String("path", w.path), zap.Error(err))

		case <-fire:
			fire = nil
			err := w.reload.Recalibrate()
			if err != nil {
				w.log.Warn("recalibration failed, keeping current recipes", zap.String("path", w.path), zap.Error(err))
			} else {
				w.log.Info("recalibrated", zap.String("path", w.path))
			}
			w.onReload(err)
		}
	}
}

func isChange(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
