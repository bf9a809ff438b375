// Package watcher re-runs a callback when a tour catalog changes on disk.
// The catalog may be a single file or a directory of YAML/JSON files.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// EnvForcePoll forces polling mode when set to a truthy value.
const EnvForcePoll = "TOURKIT_FORCE_POLL"

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched catalog was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked when the catalog changes.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithScheduler replaces the realtime scheduler behind the debouncer.
func WithScheduler(s sched.Scheduler) WatcherOption {
	return func(w *Watcher) {
		w.scheduler = s
	}
}

// Watcher monitors a catalog for changes using fsnotify with polling fallback.
type Watcher struct {
	path             string
	dir              bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	scheduler        sched.Scheduler

	fsWatcher   *fsnotify.Watcher
	debouncer   *sched.Debouncer
	useFallback bool
	last        stamp

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// stamp summarises the watched files for polling comparisons.
type stamp struct {
	mtime time.Time
	size  int64
	files int
}

func (s stamp) zero() bool { return s.files == 0 }

func (s stamp) equal(o stamp) bool {
	return s.mtime.Equal(o.mtime) && s.size == o.size && s.files == o.files
}

// NewWatcher creates a new watcher for the catalog at path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: sched.DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		scheduler:        sched.Realtime{},
		changeCh:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		w.dir = true
	}
	w.debouncer = sched.NewDebouncer(w.scheduler, w.debounceDuration)

	return w, nil
}

// Start begins watching the catalog for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	st, err := w.stat()
	if err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	// A missing catalog is fine; it may be created later.
	w.last = st

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.useFallback = w.forcePoll || envBool(EnvForcePoll)

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else if err := fsw.Add(w.watchDir()); err != nil {
			fsw.Close()
			w.useFallback = true
		} else {
			w.fsWatcher = fsw
		}
	}

	w.wg.Add(1)
	if w.useFallback {
		go w.watchPolling()
	} else {
		go w.watchFsnotify(w.fsWatcher.Events, w.fsWatcher.Errors)
	}

	w.started = true
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
// The changeCh channel is not closed; a pending receive stays blocked.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
	w.mu.Unlock()

	w.wg.Wait()
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when the catalog changes.
// This is an alternative to using the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	return w.path
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// watchDir is the directory handed to fsnotify. Single files are watched
// through their parent so atomic renames are seen.
func (w *Watcher) watchDir() string {
	if w.dir {
		return w.path
	}
	return filepath.Dir(w.path)
}

// relevant reports whether an event path concerns the catalog.
func (w *Watcher) relevant(name string) bool {
	if w.dir {
		_, ok := tour.FormatFor(name)
		return ok
	}
	return filepath.Base(name) == filepath.Base(w.path)
}

func (w *Watcher) watchFsnotify(events <-chan fsnotify.Event, errs <-chan error) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0 && !w.dir:
				w.onError(ErrFileRemoved)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			st, err := w.stat()
			if err != nil {
				switch {
				case os.IsNotExist(err):
					w.mu.RLock()
					hadFile := !w.last.zero()
					w.mu.RUnlock()
					if hadFile {
						w.onError(ErrFileRemoved)
					}
				case os.IsPermission(err):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			w.mu.Lock()
			changed := !st.equal(w.last)
			w.last = st
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// stat summarises the catalog: the file itself, or every catalog file in
// the directory.
func (w *Watcher) stat() (stamp, error) {
	if !w.dir {
		info, err := os.Stat(w.path)
		if err != nil {
			return stamp{}, err
		}
		return stamp{mtime: info.ModTime(), size: info.Size(), files: 1}, nil
	}

	entries, err := os.ReadDir(w.path)
	if err != nil {
		return stamp{}, err
	}
	var st stamp
	for _, e := range entries {
		if e.IsDir() || !w.relevant(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(st.mtime) {
			st.mtime = info.ModTime()
		}
		st.size += info.Size()
		st.files++
	}
	return st, nil
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	if !started {
		return
	}

	w.onChange()

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
