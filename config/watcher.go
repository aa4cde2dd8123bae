package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/agriops/observe"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called after a successful reload that changed the
// configuration.
type ChangeFunc func(old, updated Config)

// Watcher reloads the configuration when its YAML file changes.
type Watcher struct {
	opts     Options
	logger   observe.Logger
	debounce time.Duration
	fsw      *fsnotify.Watcher
	target   string

	mu        sync.RWMutex
	current   Config
	callbacks []ChangeFunc

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher watches opts.File. initial is the configuration already in use.
// The watch loop runs until Close.
func NewWatcher(initial Config, opts Options, logger observe.Logger, debounce time.Duration) (*Watcher, error) {
	if opts.File == "" {
		return nil, errors.New("config: watcher needs a config file")
	}
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	target, err := filepath.Abs(opts.File)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", opts.File, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	// Editors replace files by rename, so watch the directory.
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(target), err)
	}

	w := &Watcher{
		opts:     opts,
		logger:   logger.With(observe.F("component", "config.watcher")),
		debounce: debounce,
		fsw:      fsw,
		target:   target,
		current:  initial,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers cb. Callbacks run in registration order on the reload
// goroutine.
func (w *Watcher) OnChange(cb ChangeFunc) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Current returns the latest valid configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != w.target {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error(context.Background(), "config watcher error", observe.F("error", err.Error()))

		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	ctx := context.Background()
	select {
	case <-w.stop:
		return
	default:
	}

	updated, err := Load(Options{File: w.opts.File, Getenv: w.opts.Getenv})
	if err == nil {
		err = updated.ResolveSecrets(ctx)
	}
	if err != nil {
		w.logger.Error(ctx, "config reload rejected", observe.F("file", w.opts.File), observe.F("error", err.Error()))
		return
	}

	w.mu.Lock()
	old := w.current
	if reflect.DeepEqual(old, updated) {
		w.mu.Unlock()
		w.logger.Debug(ctx, "config unchanged after reload")
		return
	}
	w.current = updated
	callbacks := append([]ChangeFunc(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Info(ctx, "config reloaded", observe.F("file", w.opts.File))
	for i, cb := range callbacks {
		w.notify(ctx, i, cb, old, updated)
	}
}

func (w *Watcher) notify(ctx context.Context, idx int, cb ChangeFunc, old, updated Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "config callback panicked",
				observe.F("callback_index", idx), observe.F("panic", fmt.Sprint(r)))
		}
	}()
	cb(old, updated)
}
