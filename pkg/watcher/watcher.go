// Package watcher monitors the port-status file in watch mode and
// triggers a rebuild when it changes. fsnotify is the primary mechanism,
// with a polling fallback for filesystems that drop events; rapid edit
// bursts are debounced into a single rebuild.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Defaults tuned for a hand-edited YAML file: editors write several
// events per save.
const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrPermission     = errors.New("permission denied")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithForcePoll forces polling mode even when fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher watches a single file.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	polling   bool
	lastMtime time.Time
	lastSize  int64
	timer     *time.Timer

	changeCh chan struct{}
}

// New returns a watcher for path.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		changeCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Changed returns a channel that receives after each debounced change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	if info, err := os.Stat(w.path); err == nil {
		w.lastMtime = info.ModTime()
		w.lastSize = info.Size()
	} else if os.IsPermission(err) {
		return ErrPermission
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.polling = w.forcePoll
	if !w.polling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.polling = true
		} else {
			// Watch the directory, not the file: editors replace files
			// atomically and the inode watch would go stale.
			if err := fsw.Add(filepath.Dir(w.path)); err != nil {
				fsw.Close()
				w.polling = true
			} else {
				go w.runFsnotify(ctx, fsw)
			}
		}
	}
	if w.polling {
		go w.runPolling(ctx)
	}

	w.started = true
	return nil
}

// Stop stops watching. The change channel stays open; watch mode only
// stops at process exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.started = false
}

// IsPolling reports whether the fallback mode is active.
func (w *Watcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

func (w *Watcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == w.path {
				w.trigger()
			}
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// Errors from the kernel queue are transient; polling would
			// not do better, so keep listening.
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			w.mu.Lock()
			changed := !info.ModTime().Equal(w.lastMtime) || info.Size() != w.lastSize
			w.lastMtime = info.ModTime()
			w.lastSize = info.Size()
			w.mu.Unlock()
			if changed {
				w.trigger()
			}
		}
	}
}

// trigger restarts the debounce timer; the change channel fires once per
// quiet period.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.changeCh <- struct{}{}:
		default:
		}
	})
}
