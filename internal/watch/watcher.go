package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
)

// Watcher re-runs a callback once a burst of photo uploads has settled
type Watcher struct {
	dir      string
	accept   func(name string) bool
	debounce time.Duration
	onChange func(ctx context.Context)
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

// New starts watching dir. accept filters file names (nil accepts all);
// onChange runs after debounce has passed without further events.
func New(dir string, accept func(string) bool, debounce time.Duration, onChange func(ctx context.Context), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", domain.ErrPhotoDirUnavailable, dir, err)
	}

	return &Watcher{
		dir:      dir,
		accept:   accept,
		debounce: debounce,
		onChange: onChange,
		watcher:  fw,
		logger:   logger.Named("watch"),
	}, nil
}

// Run blocks until ctx is cancelled or the watcher fails
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := 0

	w.logger.Info("watching photo directory", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("photo event", zap.String("op", event.Op.String()), zap.String("name", event.Name))
			pending++
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			w.logger.Info("photo directory changed", zap.Int("events", pending))
			pending = 0
			w.onChange(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return w.accept(name)
}
