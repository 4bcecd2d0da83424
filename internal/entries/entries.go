// Package entries resolves logical entry points to absolute source paths
package entries

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dualpack/dualpack/pkg/types"
)

// ErrMissingEntrySource matches every MissingEntrySourceError
var ErrMissingEntrySource = errors.New("entry source missing")

// MissingEntrySourceError reports entry points whose source file does not
// exist. Resolution never raises it; the build executor does.
type MissingEntrySourceError struct {
	Entries map[string]string
}

func (e *MissingEntrySourceError) Error() string {
	names := make([]string, 0, len(e.Entries))
	for name := range e.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 1 {
		return fmt.Sprintf("entry %q: source %s does not exist", names[0], e.Entries[names[0]])
	}
	return fmt.Sprintf("%d entry sources do not exist: %v", len(names), names)
}

// Is lets errors.Is(err, ErrMissingEntrySource) match
func (e *MissingEntrySourceError) Is(target error) bool {
	return target == ErrMissingEntrySource
}

// Resolve maps each logical entry name to
// abs(projectRoot/paths.src.js/entry.path). Existence is not checked.
// A name declared twice keeps its last path.
func Resolve(settings *types.Settings, projectRoot string) (map[string]string, error) {
	resolved := make(map[string]string, len(settings.Entries))
	for _, entry := range settings.Entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("entry with path %q has no name", entry.Path)
		}
		abs, err := filepath.Abs(filepath.Join(projectRoot, settings.Paths.Src.JS, entry.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve entry %q: %w", entry.Name, err)
		}
		resolved[entry.Name] = abs
	}
	return resolved, nil
}

// CheckSources returns a MissingEntrySourceError listing every resolved
// entry whose file is absent.
func CheckSources(resolved map[string]string) error {
	missing := make(map[string]string)
	for name, path := range resolved {
		if _, err := os.Stat(path); err != nil {
			missing[name] = path
		}
	}
	if len(missing) > 0 {
		return &MissingEntrySourceError{Entries: missing}
	}
	return nil
}
