package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dualpack/dualpack/pkg/logger"
	"github.com/dualpack/dualpack/pkg/types"
)

// DefaultReloadDebounce coalesces editor save bursts into one reload
const DefaultReloadDebounce = 500 * time.Millisecond

// ReloadCallback receives the reloaded settings, or the error that
// prevented loading them
type ReloadCallback func(*types.Settings, error)

// ReloadManager reloads the settings file when it changes on disk
type ReloadManager struct {
	path      string
	log       logger.Logger
	load      func(string) (*types.Settings, error)
	callbacks []ReloadCallback

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	timer       *time.Timer
	debounce    time.Duration
	lastModTime time.Time
	done        chan struct{}
}

// NewReloadManager creates a reload manager for the settings file at path
func NewReloadManager(path string, log logger.Logger) *ReloadManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ReloadManager{
		path:     path,
		log:      log,
		load:     NewManager().LoadSettings,
		debounce: DefaultReloadDebounce,
	}
}

// OnReload registers a callback. Callbacks run sequentially, in
// registration order.
func (rm *ReloadManager) OnReload(cb ReloadCallback) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.callbacks = append(rm.callbacks, cb)
}

// SetDebouncePeriod changes the settling delay
func (rm *ReloadManager) SetDebouncePeriod(d time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.debounce = d
}

// Start watches the directory holding the settings file. Editors that
// replace the file on save are handled because the directory is watched.
func (rm *ReloadManager) Start() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.watcher != nil {
		return fmt.Errorf("already watching %s", rm.path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(rm.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}
	if stat, err := os.Stat(rm.path); err == nil {
		rm.lastModTime = stat.ModTime()
	}

	rm.watcher = w
	rm.done = make(chan struct{})
	go rm.loop(w, rm.done)

	rm.log.Debug("Watching settings file", logger.WithField("path", rm.path))
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (rm *ReloadManager) Stop() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.watcher == nil {
		return nil
	}
	if rm.timer != nil {
		rm.timer.Stop()
		rm.timer = nil
	}
	close(rm.done)
	err := rm.watcher.Close()
	rm.watcher = nil
	return err
}

// Reload loads the settings now and notifies the callbacks
func (rm *ReloadManager) Reload() {
	settings, err := rm.load(rm.path)
	if err != nil {
		rm.log.Error("Failed to reload settings", logger.WithError(err))
	} else {
		rm.log.Info("Settings reloaded", logger.WithField("entries", len(settings.Entries)))
	}

	rm.mu.Lock()
	callbacks := append([]ReloadCallback(nil), rm.callbacks...)
	rm.mu.Unlock()

	for _, cb := range callbacks {
		rm.invoke(cb, settings, err)
	}
}

func (rm *ReloadManager) invoke(cb ReloadCallback, settings *types.Settings, err error) {
	defer func() {
		if r := recover(); r != nil {
			rm.log.Error("Reload callback panic recovered", logger.WithField("panic", r))
		}
	}()
	cb(settings, err)
}

func (rm *ReloadManager) loop(w *fsnotify.Watcher, done <-chan struct{}) {
	name := filepath.Base(rm.path)
	for {
		select {
		case <-done:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rm.schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			rm.log.Warn("Settings watcher error", logger.WithError(err))
		}
	}
}

func (rm *ReloadManager) schedule() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.timer != nil {
		rm.timer.Stop()
	}
	rm.timer = time.AfterFunc(rm.debounce, func() {
		if !rm.modified() {
			rm.log.Debug("Settings file unchanged, skipping reload")
			return
		}
		rm.Reload()
	})
}

// modified reports whether the file changed since the last reload
func (rm *ReloadManager) modified() bool {
	stat, err := os.Stat(rm.path)
	if err != nil {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !stat.ModTime().After(rm.lastModTime) {
		return false
	}
	rm.lastModTime = stat.ModTime()
	return true
}
