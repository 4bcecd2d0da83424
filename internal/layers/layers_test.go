package layers_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualpack/dualpack/internal/adapters"
	"github.com/dualpack/dualpack/internal/layers"
	"github.com/dualpack/dualpack/pkg/types"
)

func layerSettings() *types.Settings {
	return &types.Settings{
		Name:  "site",
		Paths: types.PathSettings{Dist: types.DistPaths{Base: "web/dist", Clean: []string{"**/*"}}, Templates: "templates"},
		URLs:  types.URLSettings{PublicPath: "/dist/"},
		Browsers: types.BrowserSettings{
			Legacy: []string{"> 1%"},
			Modern: []string{"last 2 Chrome versions"},
		},
		Copy:      []types.CopyPattern{{From: "src/js/workbox-catch-handler.js", To: "js/[name].[ext]"}},
		DevServer: types.DevServerSettings{Public: "http://localhost:8080", Host: "localhost", Port: 8080},
	}
}

func pluginNames(spec types.BuildSpec) []string {
	names := make([]string, 0, len(spec.Plugins))
	for _, p := range spec.Plugins {
		names = append(names, p.Name)
	}
	return names
}

func TestBase(t *testing.T) {
	root := t.TempDir()
	in := layers.Inputs{ProjectRoot: root, Entries: map[string]string{"app": "/abs/app.ts"}}

	base := layers.Base(layerSettings(), in)
	assert.Equal(t, "site", base.Name)
	assert.Equal(t, filepath.Join(root, "web", "dist"), base.Output.Path)
	assert.Equal(t, "/dist/", base.Output.PublicPath)
	assert.Equal(t, []string{adapters.PluginNotifier}, pluginNames(base))
	require.Len(t, base.Module.Rules, 1)
	assert.Equal(t, types.AssetFont, base.Module.Rules[0].Kind)

	in.Entries["app"] = "changed"
	assert.Equal(t, "/abs/app.ts", base.Entry["app"], "layer must own its entry map")
}

func TestTarget(t *testing.T) {
	legacy := layers.Target(layerSettings(), types.TargetLegacy)
	modern := layers.Target(layerSettings(), types.TargetModern)

	assert.Equal(t, []string{adapters.PluginCopy, adapters.PluginManifest}, pluginNames(legacy))
	assert.Equal(t, []string{adapters.PluginManifest}, pluginNames(modern))
	assert.Equal(t, "manifest-legacy.json", legacy.Plugins[1].Options["fileName"])
	assert.Equal(t, "manifest.json", modern.Plugins[0].Options["fileName"])
	assert.Equal(t, types.AssetScript, legacy.Module.Rules[0].Kind)
}

func TestEnvironment_Development(t *testing.T) {
	s := layerSettings()
	in := layers.Inputs{ProjectRoot: t.TempDir()}

	legacy := layers.Environment(s, types.TargetLegacy, types.EnvironmentDevelopment, in)
	modern := layers.Environment(s, types.TargetModern, types.EnvironmentDevelopment, in)

	assert.Equal(t, "js/[name]-legacy.[hash].js", legacy.Output.Filename)
	assert.Equal(t, "js/[name].[hash].js", modern.Output.Filename)
	assert.Equal(t, "http://localhost:8080/", legacy.Output.PublicPath)
	assert.Equal(t, "development", legacy.Mode)
	assert.Equal(t, layers.DevTool, legacy.Devtool)
	assert.Nil(t, legacy.Optimization)

	require.NotNil(t, legacy.DevServer)
	assert.True(t, legacy.DevServer.Hot)
	assert.Equal(t, "*", legacy.DevServer.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, filepath.Join(in.ProjectRoot, "templates"), legacy.DevServer.ContentBase)

	assert.Equal(t, []string{adapters.PluginHMR}, pluginNames(legacy))
	assert.Equal(t, []string{adapters.PluginHMR, adapters.PluginDashboard}, pluginNames(modern))
}

func TestEnvironment_Production(t *testing.T) {
	s := layerSettings()
	jobs := []types.CriticalResourceJob{{Destination: "a"}, {Destination: "b"}}
	sw := &types.ServiceWorkerSpec{SwDest: "../sw.js"}
	in := layers.Inputs{ProjectRoot: t.TempDir(), Banner: "/*! banner */", CriticalJobs: jobs, ServiceWorker: sw}

	legacy := layers.Environment(s, types.TargetLegacy, types.EnvironmentProduction, in)
	modern := layers.Environment(s, types.TargetModern, types.EnvironmentProduction, in)

	assert.Equal(t, "js/[name]-legacy.[chunkhash].js", legacy.Output.Filename)
	assert.Equal(t, "js/[name].[chunkhash].js", modern.Output.Filename)
	assert.Empty(t, legacy.Output.PublicPath)
	assert.Equal(t, layers.ProductionTool, modern.Devtool)
	require.NotNil(t, legacy.Optimization)
	require.NotNil(t, modern.Optimization)

	assert.Equal(t, []string{
		adapters.PluginClean,
		adapters.PluginMiniCSSExtract,
		adapters.PluginPurgeCSS,
		adapters.PluginBanner,
		adapters.PluginHTML,
		adapters.PluginWebapp,
		adapters.PluginCreateSymlink,
		adapters.PluginSaveRemoteFile,
		adapters.PluginBundleAnalyzer,
		adapters.PluginCriticalCSS,
		adapters.PluginCriticalCSS,
	}, pluginNames(legacy))

	assert.Equal(t, []string{
		adapters.PluginModuleConcatenation,
		adapters.PluginBanner,
		adapters.PluginImageminWebp,
		adapters.PluginWorkboxGenerateSW,
		adapters.PluginBundleAnalyzer,
	}, pluginNames(modern))

	in.ServiceWorker = nil
	noSW := layers.Environment(s, types.TargetModern, types.EnvironmentProduction, in)
	assert.NotContains(t, pluginNames(noSW), adapters.PluginWorkboxGenerateSW)
}

func TestResolvePurgePaths(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"templates/index.twig", "templates/blog/_entry.twig", "src/vue/App.vue"} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, nil, 0644))
	}

	files, err := layers.ResolvePurgePaths(root, []string{"templates/**/*.twig", "src/vue/**/*.vue", "templates/index.twig"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "vue", "App.vue"),
		filepath.Join(root, "templates", "blog", "_entry.twig"),
		filepath.Join(root, "templates", "index.twig"),
	}, files)
}
