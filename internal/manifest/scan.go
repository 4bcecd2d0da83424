package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/dualpack/dualpack/internal/pipeline"
	"github.com/dualpack/dualpack/pkg/types"
)

// DefaultScanPatterns are the output folders that hold fingerprinted assets
var DefaultScanPatterns = []string{
	"js/**/*",
	"css/**/*",
	"img/**/*",
	"fonts/**/*",
}

// ScanOutput lists fingerprinted files under root. Source maps and
// manifests are skipped. Paths are relative to root with forward slashes.
func ScanOutput(root string, patterns []string) ([]OutputFile, error) {
	if len(patterns) == 0 {
		patterns = DefaultScanPatterns
	}

	seen := make(map[string]bool)
	var files []OutputFile
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid scan pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(root, match)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] || skipFile(rel) {
				continue
			}
			seen[rel] = true

			name := rel
			if strings.HasPrefix(rel, "js/") && strings.HasSuffix(rel, ".js") {
				name = logicalScriptName(rel)
			}
			files = append(files, OutputFile{Name: name, Path: rel})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func skipFile(rel string) bool {
	base := filepath.Base(rel)
	return strings.HasSuffix(base, ".map") ||
		(strings.HasPrefix(base, "manifest") && strings.HasSuffix(base, ".json"))
}

// PartitionByTarget splits scanned production output between the two
// manifests. Scripts carry the "-legacy." marker for the legacy target,
// style files belong to the target that extracts them, everything else
// is shared.
func PartitionByTarget(files []OutputFile) map[types.BuildTarget][]OutputFile {
	out := make(map[types.BuildTarget][]OutputFile, 2)
	for _, f := range files {
		switch {
		case strings.HasSuffix(f.Path, ".js"):
			if strings.Contains(filepath.Base(f.Path), "-legacy.") {
				out[types.TargetLegacy] = append(out[types.TargetLegacy], f)
			} else {
				out[types.TargetModern] = append(out[types.TargetModern], f)
			}
		case strings.HasSuffix(f.Path, ".css"):
			for _, target := range types.AllTargets() {
				if pipeline.EmitsStyleFile(target, types.EnvironmentProduction) {
					out[target] = append(out[target], f)
				}
			}
		default:
			for _, target := range types.AllTargets() {
				out[target] = append(out[target], f)
			}
		}
	}
	return out
}
