// Package watcher reloads the development server when templates change
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/fsnotify/fsnotify"

	"github.com/dualpack/dualpack/pkg/logger"
)

// DefaultSettlingDelay waits for editors to finish writing
const DefaultSettlingDelay = 100 * time.Millisecond

// defaultExclusions are directory names never watched
var defaultExclusions = []string{".git", ".svn", ".hg", "node_modules", ".idea", ".vscode", ".dualpack"}

// Reloader is told about settled template changes. Calls are fire and
// forget: the watcher never waits for, or retries, a reload.
type Reloader interface {
	Reload(path string)
}

// TemplateWatcher watches a directory tree recursively
type TemplateWatcher struct {
	watcher    *fsnotify.Watcher
	log        logger.Logger
	reloader   Reloader
	patterns   []string
	exclusions []string
	settling   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// Option configures a TemplateWatcher
type Option func(*TemplateWatcher)

// WithPatterns limits reloads to files whose path relative to the root
// matches one of the doublestar patterns
func WithPatterns(patterns ...string) Option {
	return func(w *TemplateWatcher) { w.patterns = patterns }
}

// WithExclusions adds path fragments that are never watched
func WithExclusions(exclusions ...string) Option {
	return func(w *TemplateWatcher) { w.exclusions = append(w.exclusions, exclusions...) }
}

// WithSettlingDelay sets how long a path must stay quiet before reloading
func WithSettlingDelay(d time.Duration) Option {
	return func(w *TemplateWatcher) { w.settling = d }
}

// New creates a watcher that notifies reloader
func New(reloader Reloader, log logger.Logger, opts ...Option) (*TemplateWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	w := &TemplateWatcher{
		watcher:  fw,
		log:      log,
		reloader: reloader,
		settling: DefaultSettlingDelay,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches root until ctx is done
func (w *TemplateWatcher) Run(ctx context.Context, root string) error {
	defer w.close()

	if err := w.addTree(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	w.log.Info("Watching templates", logger.WithField("path", root))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.isExcluded(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warn("Failed to watch new directory", logger.WithField("path", event.Name), logger.WithError(err))
					}
					continue
				}
			}
			if event.Op == fsnotify.Chmod || !w.matches(root, event.Name) {
				continue
			}
			w.settle(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", logger.WithError(err))
		}
	}
}

// settle restarts the quiet period of path; the reload fires once it ends
func (w *TemplateWatcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settling, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.log.Debug("Template changed", logger.WithField("path", path))
		w.reloader.Reload(path)
	})
}

func (w *TemplateWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.isExcluded(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("Failed to watch directory", logger.WithField("path", path), logger.WithError(err))
		}
		return nil
	})
}

func (w *TemplateWatcher) isExcluded(path string) bool {
	base := filepath.Base(path)
	for _, exc := range defaultExclusions {
		if base == exc {
			return true
		}
	}
	for _, exc := range w.exclusions {
		if strings.Contains(path, exc) {
			return true
		}
	}
	return false
}

func (w *TemplateWatcher) matches(root, path string) bool {
	if len(w.patterns) == 0 {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *TemplateWatcher) close() {
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.watcher.Close()
}
