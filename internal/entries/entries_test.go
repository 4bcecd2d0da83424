package entries_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dualpack/dualpack/internal/entries"
	"github.com/dualpack/dualpack/pkg/types"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()
	s := &types.Settings{
		Paths: types.PathSettings{Src: types.SourcePaths{JS: "src/js"}},
		Entries: types.EntryTable{
			{Name: "app", Path: "app.ts"},
			{Name: "lazysizes", Path: "utils/lazysizes-wrapper.ts"},
		},
	}

	got, err := entries.Resolve(s, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"app":       filepath.Join(root, "src", "js", "app.ts"),
		"lazysizes": filepath.Join(root, "src", "js", "utils", "lazysizes-wrapper.ts"),
	}
	for name, path := range want {
		if got[name] != path {
			t.Errorf("entry %s = %s, want %s", name, got[name], path)
		}
		if !filepath.IsAbs(got[name]) {
			t.Errorf("entry %s is not absolute", name)
		}
	}
}

func TestResolve_DoesNotCheckExistence(t *testing.T) {
	s := &types.Settings{Entries: types.EntryTable{{Name: "ghost", Path: "nope.js"}}}
	if _, err := entries.Resolve(s, t.TempDir()); err != nil {
		t.Fatalf("resolution must not check existence: %v", err)
	}
}

func TestResolve_RejectsUnnamedEntry(t *testing.T) {
	s := &types.Settings{Entries: types.EntryTable{{Path: "app.js"}}}
	if _, err := entries.Resolve(s, t.TempDir()); err == nil {
		t.Fatal("expected error for unnamed entry")
	}
}

func TestCheckSources(t *testing.T) {
	root := t.TempDir()
	present := filepath.Join(root, "app.ts")
	if err := os.WriteFile(present, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := entries.CheckSources(map[string]string{"app": present}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := entries.CheckSources(map[string]string{
		"app":     present,
		"missing": filepath.Join(root, "missing.ts"),
	})
	if !errors.Is(err, entries.ErrMissingEntrySource) {
		t.Fatalf("expected ErrMissingEntrySource, got %v", err)
	}
	var missingErr *entries.MissingEntrySourceError
	if !errors.As(err, &missingErr) {
		t.Fatal("expected MissingEntrySourceError")
	}
	if _, ok := missingErr.Entries["missing"]; !ok || len(missingErr.Entries) != 1 {
		t.Errorf("unexpected missing set: %v", missingErr.Entries)
	}
}
