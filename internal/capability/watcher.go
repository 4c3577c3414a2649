package capability

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a registry current with its tool manifest. On every write or
// create of the manifest file the registry is rebuilt and swapped in whole;
// readers holding the previous registry are unaffected.
type Watcher struct {
	opts    Options
	current atomic.Pointer[Registry]

	mu       sync.Mutex
	onReload func(*Registry, error)
	debugLog func(format string, args ...interface{})

	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped sync.Once
}

// NewWatcher loads the registry and, if opts names a manifest, starts
// watching it. Watching is best effort: if fsnotify is unavailable the
// initial registry is served unchanged.
func NewWatcher(opts Options) (*Watcher, error) {
	reg, err := Load(opts)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		opts:     opts,
		done:     make(chan struct{}),
		debugLog: func(format string, args ...interface{}) {},
	}
	w.current.Store(reg)

	if opts.ManifestPath == "" {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	// Watch the directory: editors often replace the file rather than write it.
	if err := fsw.Add(filepath.Dir(opts.ManifestPath)); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw
	go w.watch()

	return w, nil
}

// SetDebugLog sets the debug logging function.
func (w *Watcher) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.debugLog = fn
	w.mu.Unlock()
}

// OnReload registers a callback invoked after each reload attempt.
func (w *Watcher) OnReload(fn func(*Registry, error)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Current returns the latest registry.
func (w *Watcher) Current() *Registry {
	return w.current.Load()
}

// Reload rebuilds the registry now. On error the previous registry is kept.
func (w *Watcher) Reload() error {
	reg, err := Load(w.opts)
	if err == nil {
		w.current.Store(reg)
	}

	w.mu.Lock()
	logf, cb := w.debugLog, w.onReload
	w.mu.Unlock()

	if err != nil {
		logf("[registry] reload failed, keeping previous tools: %v", err)
	} else {
		logf("[registry] reloaded: %d providers, %d tools", reg.Len(), len(reg.ToolNames()))
	}
	if cb != nil {
		cb(w.Current(), err)
	}
	return err
}

func (w *Watcher) watch() {
	target := filepath.Clean(w.opts.ManifestPath)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.Reload()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() {
	w.stopped.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}
