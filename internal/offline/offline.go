// Package offline builds the service-worker descriptor and validates
// its runtime caching rules.
package offline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"

	"github.com/dualpack/dualpack/pkg/types"
)

var (
	// ErrUnrecognizedCacheStrategy matches every UnrecognizedCacheStrategyError
	ErrUnrecognizedCacheStrategy = errors.New("unrecognized cache strategy")
	// ErrEmptyURLPattern is returned for a runtime rule without a pattern
	ErrEmptyURLPattern = errors.New("runtime caching rule has an empty url pattern")
)

// UnrecognizedCacheStrategyError reports a runtime rule whose handler is
// not a known caching strategy. It is fatal for composition.
type UnrecognizedCacheStrategyError struct {
	Index    int
	Strategy types.CacheStrategy
}

func (e *UnrecognizedCacheStrategyError) Error() string {
	return fmt.Sprintf("runtime caching rule %d: unrecognized cache strategy %q", e.Index, e.Strategy)
}

// Is lets errors.Is(err, ErrUnrecognizedCacheStrategy) match
func (e *UnrecognizedCacheStrategyError) Is(target error) bool {
	return target == ErrUnrecognizedCacheStrategy
}

var strategies = map[types.CacheStrategy]bool{
	types.CacheFirst:           true,
	types.CacheOnly:            true,
	types.NetworkFirst:         true,
	types.NetworkOnly:          true,
	types.StaleWhileRevalidate: true,
}

// IsKnownStrategy reports whether s is a recognised caching strategy
func IsKnownStrategy(s types.CacheStrategy) bool {
	return strategies[s]
}

// SelectRuntimeCaching validates the rules and returns a copy in the
// same order.
func SelectRuntimeCaching(rules []types.RuntimeCacheRule) ([]types.RuntimeCacheRule, error) {
	out := make([]types.RuntimeCacheRule, 0, len(rules))
	for i, rule := range rules {
		if rule.URLPattern == "" {
			return nil, fmt.Errorf("runtime caching rule %d: %w", i, ErrEmptyURLPattern)
		}
		if !IsKnownStrategy(rule.Handler) {
			return nil, &UnrecognizedCacheStrategyError{Index: i, Strategy: rule.Handler}
		}
		out = append(out, rule)
	}
	return out, nil
}

// BuildServiceWorker produces the generator descriptor for the modern
// production build.
func BuildServiceWorker(settings *types.Settings) (*types.ServiceWorkerSpec, error) {
	wb := settings.Workbox
	runtime, err := SelectRuntimeCaching(wb.RuntimeCaching)
	if err != nil {
		return nil, err
	}

	return &types.ServiceWorkerSpec{
		SwDest:                   wb.SwDest,
		PrecacheManifestFilename: wb.PrecacheManifestFilename,
		ImportScripts:            append([]string(nil), wb.ImportScripts...),
		Exclude:                  append([]string(nil), wb.Exclude...),
		GlobDirectory:            wb.GlobDirectory,
		GlobPatterns:             append([]string(nil), wb.GlobPatterns...),
		OfflineGoogleAnalytics:   wb.OfflineGoogleAnalytics,
		RuntimeCaching:           runtime,
	}, nil
}

// ResolvePrecache expands the glob patterns of sw under root and drops
// excluded files. Paths are returned relative to the glob directory,
// sorted.
func ResolvePrecache(root string, sw *types.ServiceWorkerSpec) ([]string, error) {
	if sw == nil {
		return nil, nil
	}

	dir := sw.GlobDirectory
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	seen := make(map[string]bool)
	var files []string
	for _, pattern := range sw.GlobPatterns {
		matches, err := doublestar.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid precache pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if info, err := os.Stat(match); err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(dir, match)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] {
				continue
			}
			excluded, err := isExcluded(rel, sw.Exclude)
			if err != nil {
				return nil, err
			}
			if excluded {
				continue
			}
			seen[rel] = true
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isExcluded(rel string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
		// Bare file patterns apply at any depth.
		if ok, _ := doublestar.Match(pattern, filepath.Base(rel)); ok {
			return true, nil
		}
	}
	return false, nil
}
