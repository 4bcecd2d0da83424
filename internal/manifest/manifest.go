// Package manifest maps stable logical asset names to fingerprinted files.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dualpack/dualpack/pkg/types"
)

const (
	// LegacyFileName is the manifest written for the legacy target
	LegacyFileName = "manifest-legacy.json"
	// ModernFileName is the manifest written for the modern target
	ModernFileName = "manifest.json"

	// HashLength is the length of the content hash embedded in filenames
	HashLength = 32
)

var hashSegment = regexp.MustCompile(`(\.[a-f0-9]{32})(\..*)$`)

// FileName returns the manifest file name for a target
func FileName(target types.BuildTarget) string {
	if target == types.TargetLegacy {
		return LegacyFileName
	}
	return ModernFileName
}

// StripHash removes the content-hash segment that precedes the final
// extension, e.g. "img/logo.<32 hex>.png" becomes "img/logo.png".
// Stripping repeats until nothing matches, so the result is a fixed
// point and StripHash(StripHash(x)) == StripHash(x).
func StripHash(name string) string {
	for {
		stripped := hashSegment.ReplaceAllString(name, "$2")
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// OutputFile is one file reported by the external build executor
type OutputFile struct {
	// Name is the name the executor reports for the asset. It may carry
	// the content hash. Defaults to Path.
	Name string `json:"name"`
	// Path is the physical path relative to the output root.
	Path string `json:"path"`
}

// Entry is one logical to physical mapping
type Entry struct {
	LogicalName      string
	PhysicalFilename string
}

// Manifest is an ordered logical to physical name mapping for one target
type Manifest struct {
	Target   types.BuildTarget
	FileName string
	Entries  []Entry
}

// Lookup resolves a logical name
func (m *Manifest) Lookup(logical string) (string, bool) {
	for _, e := range m.Entries {
		if e.LogicalName == logical {
			return e.PhysicalFilename, true
		}
	}
	return "", false
}

// Len returns the number of entries
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// MarshalJSON writes the entries as a JSON object in manifest order
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.LogicalName)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.PhysicalFilename)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Write writes the manifest into dir and returns the file path
func (m *Manifest) Write(dir string) (string, error) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return "", fmt.Errorf("failed to format manifest: %w", err)
	}
	pretty.WriteByte('\n')

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}

	target := filepath.Join(dir, m.FileName)
	if err := os.WriteFile(target, pretty.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return target, nil
}

// Generator builds manifests from build output
type Generator struct {
	basePath   string
	publicPath string
}

// NewGenerator creates a generator. basePath prefixes logical names,
// publicPath prefixes physical names.
func NewGenerator(basePath, publicPath string) *Generator {
	return &Generator{basePath: basePath, publicPath: publicPath}
}

// Generate builds the manifest of a target. Entries are sorted by
// logical name; when two files share a logical name the later one wins.
func (g *Generator) Generate(files []OutputFile, target types.BuildTarget) *Manifest {
	byName := make(map[string]string, len(files))
	for _, f := range files {
		name := f.Name
		if name == "" {
			name = f.Path
		}
		logical := g.basePath + StripHash(filepath.ToSlash(name))
		byName[logical] = joinPublic(g.publicPath, filepath.ToSlash(f.Path))
	}

	entries := make([]Entry, 0, len(byName))
	for logical, physical := range byName {
		entries = append(entries, Entry{LogicalName: logical, PhysicalFilename: physical})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LogicalName < entries[j].LogicalName
	})

	return &Manifest{
		Target:   target,
		FileName: FileName(target),
		Entries:  entries,
	}
}

func joinPublic(publicPath, file string) string {
	if publicPath == "" {
		return file
	}
	if strings.HasSuffix(publicPath, "/") {
		return publicPath + strings.TrimPrefix(file, "/")
	}
	return publicPath + "/" + strings.TrimPrefix(file, "/")
}

// logicalScriptName turns "js/app-legacy.<hash>.js" into "app.<hash>.js",
// the chunk-based name the bundler reports for entry scripts.
func logicalScriptName(rel string) string {
	base := path.Base(rel)
	return strings.Replace(base, "-legacy.", ".", 1)
}
