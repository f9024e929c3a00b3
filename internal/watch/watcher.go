// internal/watch/watcher.go
package watch

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"qvcs/internal/quantum"
	"qvcs/shared/types"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterFunc is told about every commit the watcher registers
type RegisterFunc func(id uuid.UUID, change shared.FileChange)

// Watcher registers a superposed commit for every file that changes under
// the tracker's root
type Watcher struct {
	*Tracker
	watcher       *fsnotify.Watcher
	probabilities map[string]float64
	debounce      time.Duration
	onRegister    RegisterFunc

	mu      sync.Mutex
	pending map[string]*time.Timer

	// Serializes record so consecutive edits to a file diff against each other
	recordMu sync.Mutex
}

type WatcherOption func(*Watcher)

// WithDebounce waits for a path to be quiet for d before recording it
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithOnRegister(fn RegisterFunc) WatcherOption {
	return func(w *Watcher) { w.onRegister = fn }
}

func NewWatcher(tracker *Tracker, probabilities map[string]float64, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		Tracker:       tracker,
		watcher:       fsw,
		probabilities: probabilities,
		pending:       make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(tracker.Root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("initializing watches: %w", err)
	}
	return w, nil
}

// addTree watches dir and every directory below it that isn't ignored
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return fmt.Errorf("getting relative path: %w", err)
		}
		if rel != "." && ShouldIgnore(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run processes filesystem events until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for changes", zap.String("root", w.Root))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleEvent processes individual filesystem events
func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.Root, event.Name)
	if err != nil {
		w.logger.Error("getting relative path", zap.Error(err))
		return
	}
	if ShouldIgnore(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
	}

	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.schedule(rel)
	}
}

func (w *Watcher) schedule(rel string) {
	if w.debounce <= 0 {
		w.record(rel)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[rel]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		w.mu.Unlock()
		w.record(rel)
	})
}

func (w *Watcher) record(rel string) {
	w.recordMu.Lock()
	defer w.recordMu.Unlock()

	ch, err := w.Change(rel)
	if stderrors.Is(err, ErrUnchanged) {
		return
	}
	if err != nil {
		w.logger.Debug("skipping path", zap.String("path", rel), zap.Error(err))
		return
	}

	id, err := w.Repo.Register([]shared.FileChange{ch}, w.probabilities,
		quantum.WithMessage(fmt.Sprintf("watch: %s %s", ch.Operation, rel)))
	if err != nil {
		w.logger.Error("registering change", zap.String("path", rel), zap.Error(err))
		return
	}

	w.logger.Info("registered change",
		zap.String("path", rel),
		zap.String("operation", ch.Operation.String()),
		zap.Stringer("commit", id))

	if w.onRegister != nil {
		w.onRegister(id, ch)
	}
}

// Close stops the watcher and any pending debounced records
func (w *Watcher) Close() error {
	w.mu.Lock()
	for rel, t := range w.pending {
		t.Stop()
		delete(w.pending, rel)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
