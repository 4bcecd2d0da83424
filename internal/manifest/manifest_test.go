package manifest_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualpack/dualpack/internal/manifest"
	"github.com/dualpack/dualpack/pkg/types"
)

const hash = "0123456789abcdef0123456789abcdef"

func TestStripHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"app." + hash + ".js", "app.js"},
		{"img/logo." + hash + ".png", "img/logo.png"},
		{"app." + hash + ".js.map", "app.js.map"},
		{"styles.css", "styles.css"},
		{"app.0123.js", "app.0123.js"},
		{"app." + strings.ToUpper(hash) + ".js", "app." + strings.ToUpper(hash) + ".js"},
		{"a." + hash + "." + hash + ".js", "a.js"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := manifest.StripHash(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, manifest.StripHash(got), "StripHash must be idempotent")
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "manifest-legacy.json", manifest.FileName(types.TargetLegacy))
	assert.Equal(t, "manifest.json", manifest.FileName(types.TargetModern))
}

func TestGenerate_SortedAndPrefixed(t *testing.T) {
	files := []manifest.OutputFile{
		{Name: "app." + hash + ".js", Path: "js/app-legacy." + hash + ".js"},
		{Path: "css/styles." + hash + ".css"},
		{Path: "fonts/icons.woff2"},
	}

	m := manifest.NewGenerator("", "/dist/").Generate(files, types.TargetLegacy)
	require.Equal(t, 3, m.Len())
	assert.Equal(t, "manifest-legacy.json", m.FileName)

	var keys []string
	for _, e := range m.Entries {
		keys = append(keys, e.LogicalName)
	}
	assert.Equal(t, []string{"app.js", "css/styles.css", "fonts/icons.woff2"}, keys)

	physical, ok := m.Lookup("app.js")
	require.True(t, ok)
	assert.Equal(t, "/dist/js/app-legacy."+hash+".js", physical)

	withBase := manifest.NewGenerator("assets/", "").Generate(files[:1], types.TargetModern)
	_, ok = withBase.Lookup("assets/app.js")
	assert.True(t, ok)
}

func TestGenerate_LaterDuplicateWins(t *testing.T) {
	files := []manifest.OutputFile{
		{Name: "app." + hash + ".js", Path: "js/first.js"},
		{Name: "app.ffffffffffffffffffffffffffffffff.js", Path: "js/second.js"},
	}
	m := manifest.NewGenerator("", "").Generate(files, types.TargetModern)
	require.Equal(t, 1, m.Len())
	assert.Equal(t, "js/second.js", m.Entries[0].PhysicalFilename)
}

func TestManifest_WriteKeepsOrder(t *testing.T) {
	m := &manifest.Manifest{
		Target:   types.TargetModern,
		FileName: manifest.FileName(types.TargetModern),
		Entries: []manifest.Entry{
			{LogicalName: "b.js", PhysicalFilename: "b.1.js"},
			{LogicalName: "a.js", PhysicalFilename: "a.1.js"},
		},
	}

	dir := t.TempDir()
	path, err := m.Write(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "manifest.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(data), `"b.js"`), strings.Index(string(data), `"a.js"`))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "a.1.js", decoded["a.js"])
}

func TestScanOutput(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	}
	write("js/app-legacy." + hash + ".js")
	write("js/app." + hash + ".js")
	write("js/app." + hash + ".js.map")
	write("css/styles." + hash + ".css")
	write("img/logo." + hash + ".png")
	write("manifest.json")
	write("index.html")

	files, err := manifest.ScanOutput(root, nil)
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{
		"css/styles." + hash + ".css",
		"img/logo." + hash + ".png",
		"js/app-legacy." + hash + ".js",
		"js/app." + hash + ".js",
	}, paths)

	parts := manifest.PartitionByTarget(files)
	assert.Len(t, parts[types.TargetLegacy], 3, "legacy gets its script, the style file and images")
	assert.Len(t, parts[types.TargetModern], 2, "modern gets its script and images")

	legacy := manifest.NewGenerator("", "/dist/").Generate(parts[types.TargetLegacy], types.TargetLegacy)
	modern := manifest.NewGenerator("", "/dist/").Generate(parts[types.TargetModern], types.TargetModern)

	legacyApp, _ := legacy.Lookup("app.js")
	modernApp, _ := modern.Lookup("app.js")
	assert.Equal(t, "/dist/js/app-legacy."+hash+".js", legacyApp)
	assert.Equal(t, "/dist/js/app."+hash+".js", modernApp)
	_, hasStyles := modern.Lookup("css/styles.css")
	assert.False(t, hasStyles)
}
