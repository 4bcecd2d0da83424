package adapters_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualpack/dualpack/internal/adapters"
	"github.com/dualpack/dualpack/pkg/merge"
	"github.com/dualpack/dualpack/pkg/types"
)

func TestDefaultRegistry_Names(t *testing.T) {
	r := adapters.DefaultRegistry()

	assert.Contains(t, r.Names(adapters.KindLoader), "babel-loader")
	assert.Contains(t, r.Names(adapters.KindLoader), "ignore-loader")
	assert.Contains(t, r.Names(adapters.KindMinimizer), "terser")
	assert.Contains(t, r.Names(adapters.KindPlugin), adapters.PluginWorkboxGenerateSW)

	_, ok := r.Get(adapters.KindPlugin, "babel-loader")
	assert.False(t, ok, "kinds have separate namespaces")
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := adapters.NewRegistry()
	require.NoError(t, r.Register(adapters.NewLoader("x")))
	assert.Error(t, r.Register(adapters.NewLoader("x")))
	assert.NoError(t, r.Register(adapters.NewMinimizer("x")))
}

func TestRegistry_ValidateUnknownAdapter(t *testing.T) {
	r := adapters.DefaultRegistry()

	tests := []struct {
		name string
		spec types.BuildSpec
		path string
	}{
		{
			name: "loader",
			spec: types.BuildSpec{Module: types.ModuleSpec{Rules: []types.StageDescriptor{
				{Use: []types.AdapterRef{{Name: "babel-loader"}, {Name: "sass-loader"}}},
			}}},
			path: "module.rules[0].use[1]",
		},
		{
			name: "plugin",
			spec: types.BuildSpec{Plugins: []types.PluginDescriptor{{Name: "copy"}, {Name: "mystery"}}},
			path: "plugins[1]",
		},
		{
			name: "minimizer",
			spec: types.BuildSpec{Optimization: &types.OptimizationPolicy{Minimizers: []types.AdapterRef{{Name: "uglify"}}}},
			path: "optimization.minimizer[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, merge.ErrConfiguration))

			var cfgErr *merge.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.path, cfgErr.Path)
		})
	}
}

func TestRegistry_ApplyPlugins(t *testing.T) {
	r := adapters.DefaultRegistry()
	job := types.CriticalResourceJob{Source: "http://x/", Destination: "index_critical.min.css", Width: 1200, Height: 1200}

	spec := types.BuildSpec{
		Plugins: []types.PluginDescriptor{
			{Name: adapters.PluginManifest, Options: map[string]any{"fileName": "manifest-legacy.json"}},
			{Name: adapters.PluginCopy, Options: map[string]any{"patterns": []types.CopyPattern{{From: "a", To: "b"}}}},
			{Name: adapters.PluginClean, Options: map[string]any{"root": "/web/dist", "paths": []string{"js", "css"}}},
			{Name: adapters.PluginMiniCSSExtract, Options: map[string]any{"filename": "css/[name].[chunkhash].css"}},
			{Name: adapters.PluginCriticalCSS, Options: map[string]any{"job": job}},
			{Name: adapters.PluginBundleAnalyzer, Options: map[string]any{"reportFilename": "report-legacy.html"}},
			{Name: adapters.PluginHMR},
		},
	}
	before := merge.Clone(spec)

	got, err := r.ApplyPlugins(spec)
	require.NoError(t, err)
	assert.Equal(t, before, spec, "input must not change")

	assert.Equal(t, "manifest-legacy.json", got.Artifacts.Manifest)
	assert.Equal(t, []types.CopyPattern{{From: "a", To: "b"}}, got.Artifacts.Copy)
	assert.Equal(t, "/web/dist", got.Artifacts.CleanRoot)
	assert.Equal(t, []string{"js", "css"}, got.Artifacts.CleanPaths)
	assert.Equal(t, "css/[name].[chunkhash].css", got.Output.CSSFilename)
	assert.Equal(t, []types.CriticalResourceJob{job}, got.Artifacts.CriticalJobs)
	assert.Equal(t, "report-legacy.html", got.Artifacts.Report)
	assert.True(t, got.Artifacts.HotReload)
}

func TestRegistry_ApplyPlugins_DecodesGenericOptions(t *testing.T) {
	r := adapters.DefaultRegistry()
	spec := types.BuildSpec{Plugins: []types.PluginDescriptor{
		{Name: adapters.PluginWorkboxGenerateSW, Options: map[string]any{
			"serviceWorker": map[string]any{
				"swDest": "../sw.js",
				"runtimeCaching": []any{
					map[string]any{"urlPattern": `\.png$`, "handler": "cacheFirst", "options": map[string]any{"cacheName": "images"}},
				},
			},
		}},
		{Name: adapters.PluginCreateSymlink, Options: map[string]any{
			"links": []any{map[string]any{"origin": "index.html", "symlink": "../index.html"}},
		}},
	}}

	got, err := r.ApplyPlugins(spec)
	require.NoError(t, err)
	require.NotNil(t, got.Artifacts.ServiceWorker)
	assert.Equal(t, "../sw.js", got.Artifacts.ServiceWorker.SwDest)
	require.Len(t, got.Artifacts.ServiceWorker.RuntimeCaching, 1)
	assert.Equal(t, types.CacheFirst, got.Artifacts.ServiceWorker.RuntimeCaching[0].Handler)
	assert.Equal(t, "images", got.Artifacts.ServiceWorker.RuntimeCaching[0].Options.CacheName)
	assert.Equal(t, []types.Symlink{{Origin: "index.html", Symlink: "../index.html"}}, got.Artifacts.Symlinks)
}

func TestRegistry_ApplyPlugins_Errors(t *testing.T) {
	r := adapters.DefaultRegistry()

	_, err := r.ApplyPlugins(types.BuildSpec{Plugins: []types.PluginDescriptor{{Name: "nope"}}})
	assert.ErrorIs(t, err, merge.ErrConfiguration)

	_, err = r.ApplyPlugins(types.BuildSpec{Plugins: []types.PluginDescriptor{
		{Name: adapters.PluginManifest, Options: map[string]any{"fileName": "manifest.json"}},
		{Name: adapters.PluginManifest, Options: map[string]any{"fileName": "manifest-legacy.json"}},
	}})
	assert.ErrorIs(t, err, merge.ErrConfiguration)

	_, err = r.ApplyPlugins(types.BuildSpec{Plugins: []types.PluginDescriptor{
		{Name: adapters.PluginBanner, Options: map[string]any{"banner": []any{1, 2}}},
	}})
	assert.Error(t, err)
}

func TestNewPlugin_Custom(t *testing.T) {
	r := adapters.NewRegistry()
	r.MustRegister(adapters.NewPlugin("stamp", func(spec *types.BuildSpec, opts map[string]any) error {
		if spec.Extra == nil {
			spec.Extra = map[string]any{}
		}
		spec.Extra["stamp"] = opts["value"]
		return nil
	}))

	spec := types.BuildSpec{Plugins: []types.PluginDescriptor{{Name: "stamp", Options: map[string]any{"value": "v1"}}}}
	got, err := r.ApplyPlugins(spec)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Extra["stamp"])
	assert.Nil(t, spec.Extra)
}
