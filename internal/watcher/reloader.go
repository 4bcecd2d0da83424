package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dualpack/dualpack/pkg/logger"
)

// ContentChanged is the message the dev server broadcasts to its clients
const ContentChanged = "content-changed"

// DefaultReloadTimeout bounds one reload request
const DefaultReloadTimeout = 2 * time.Second

// HTTPReloader posts a content-changed message to the dev server.
// Failures are logged, never returned.
type HTTPReloader struct {
	URL    string
	Client *http.Client
	log    logger.Logger
}

// NewHTTPReloader creates a reloader posting to url
func NewHTTPReloader(url string, log logger.Logger) *HTTPReloader {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTTPReloader{
		URL:    url,
		Client: &http.Client{Timeout: DefaultReloadTimeout},
		log:    log,
	}
}

type reloadMessage struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Reload sends the message in the background
func (r *HTTPReloader) Reload(path string) {
	go func() {
		if err := r.send(context.Background(), path); err != nil {
			r.log.Warn("Dev server reload failed", logger.WithField("url", r.URL), logger.WithError(err))
		}
	}()
}

func (r *HTTPReloader) send(ctx context.Context, path string) error {
	body, err := json.Marshal(reloadMessage{Type: ContentChanged, Path: path})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// LogReloader only logs changes
type LogReloader struct {
	Log logger.Logger
}

func (r LogReloader) Reload(path string) {
	if r.Log != nil {
		r.Log.Info("Template changed", logger.WithField("path", path))
	}
}

// FuncReloader adapts a function to Reloader
type FuncReloader func(path string)

func (f FuncReloader) Reload(path string) { f(path) }
