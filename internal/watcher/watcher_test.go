package watcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualpack/dualpack/internal/watcher"
)

func startWatcher(t *testing.T, root string, reloader watcher.Reloader, opts ...watcher.Option) {
	t.Helper()
	opts = append([]watcher.Option{watcher.WithSettlingDelay(20 * time.Millisecond)}, opts...)
	w, err := watcher.New(reloader, nil, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher time to register directories.
	time.Sleep(50 * time.Millisecond)
}

func TestTemplateWatcher_ReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_partials"), 0755))

	changed := make(chan string, 16)
	startWatcher(t, root, watcher.FuncReloader(func(path string) { changed <- path }),
		watcher.WithPatterns("**/*.twig"))

	target := filepath.Join(root, "_partials", "header.twig")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("v"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))

	select {
	case path := <-changed:
		assert.Equal(t, target, path)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}

	select {
	case path := <-changed:
		t.Fatalf("burst should coalesce and non-matching files are ignored, got %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTemplateWatcher_IgnoresExcluded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))

	changed := make(chan string, 4)
	startWatcher(t, root, watcher.FuncReloader(func(path string) { changed <- path }))

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.twig"), []byte("x"), 0644))

	select {
	case path := <-changed:
		t.Fatalf("excluded path reloaded: %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHTTPReloader(t *testing.T) {
	received := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg map[string]string
		_ = json.NewDecoder(r.Body).Decode(&msg)
		received <- msg
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	watcher.NewHTTPReloader(srv.URL, nil).Reload("/templates/index.twig")

	select {
	case msg := <-received:
		assert.Equal(t, watcher.ContentChanged, msg["type"])
		assert.Equal(t, "/templates/index.twig", msg["path"])
	case <-time.After(3 * time.Second):
		t.Fatal("dev server was not notified")
	}
}

func TestHTTPReloader_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	assert.NotPanics(t, func() {
		watcher.NewHTTPReloader(srv.URL, nil).Reload("index.twig")
	})
}
