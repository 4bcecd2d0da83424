package layers

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
)

// ResolvePurgePaths expands the purge glob patterns relative to
// projectRoot into the sorted list of files scanned for used selectors.
func ResolvePurgePaths(projectRoot string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(absJoin(projectRoot, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid purge pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
