package merge_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualpack/dualpack/pkg/merge"
	"github.com/dualpack/dualpack/pkg/types"
)

func TestMerge_DisjointLayersCommute(t *testing.T) {
	a := types.BuildSpec{
		Name:  "app",
		Entry: map[string]string{"app": "/src/js/app.ts"},
		Extra: map[string]any{"resolve": map[string]any{"alias": "vue"}},
	}
	b := types.BuildSpec{
		Devtool: "source-map",
		Output:  types.Output{Path: "/web/dist"},
		Extra:   map[string]any{"performance": map[string]any{"hints": false}},
	}

	ab, err := merge.Merge(a, b)
	require.NoError(t, err)
	ba, err := merge.Merge(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, "app", ab.Name)
	assert.Equal(t, "source-map", ab.Devtool)
	assert.Equal(t, "/web/dist", ab.Output.Path)
	assert.Len(t, ab.Extra, 2)
}

func TestMerge_LaterLayerWinsOnScalars(t *testing.T) {
	tests := []struct {
		name   string
		layers []types.BuildSpec
		want   string
	}{
		{"single", []types.BuildSpec{{Devtool: "eval"}}, "eval"},
		{"later wins", []types.BuildSpec{{Devtool: "eval"}, {Devtool: "source-map"}}, "source-map"},
		{"zero keeps earlier", []types.BuildSpec{{Devtool: "eval"}, {}}, "eval"},
		{"last of three", []types.BuildSpec{{Devtool: "a"}, {Devtool: "b"}, {Devtool: "c"}}, "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := merge.Merge(tt.layers...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Devtool)
		})
	}
}

func TestMerge_SequencesConcatenateInLayerOrder(t *testing.T) {
	a := types.BuildSpec{Plugins: []types.PluginDescriptor{{Name: "copy"}, {Name: "manifest"}}}
	b := types.BuildSpec{Plugins: []types.PluginDescriptor{{Name: "notifier"}}}
	c := types.BuildSpec{Plugins: []types.PluginDescriptor{{Name: "clean"}, {Name: "banner"}}}

	got, err := merge.Merge(a, b, c)
	require.NoError(t, err)

	names := make([]string, 0, len(got.Plugins))
	for _, p := range got.Plugins {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"copy", "manifest", "notifier", "clean", "banner"}, names)
	assert.Len(t, got.Plugins, len(a.Plugins)+len(b.Plugins)+len(c.Plugins))
}

func TestMerge_DoesNotMutateOrAliasInputs(t *testing.T) {
	a := types.BuildSpec{
		Entry:   map[string]string{"app": "/a.ts"},
		Module:  types.ModuleSpec{Rules: []types.StageDescriptor{{Kind: types.AssetScript, Test: `\.js$`}}},
		Plugins: []types.PluginDescriptor{{Name: "copy", Options: map[string]any{"to": "x"}}},
		DevServer: &types.DevServerSpec{
			Host:    "localhost",
			Headers: map[string]string{"Access-Control-Allow-Origin": "*"},
		},
	}
	b := types.BuildSpec{
		Entry:     map[string]string{"vendor": "/v.ts"},
		DevServer: &types.DevServerSpec{Port: 8080},
	}
	before := merge.Clone(a)

	got, err := merge.Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, before, a)

	got.Entry["app"] = "changed"
	got.Plugins[0].Options["to"] = "changed"
	got.Module.Rules[0].Test = "changed"
	got.DevServer.Headers["Access-Control-Allow-Origin"] = "changed"

	assert.Equal(t, "/a.ts", a.Entry["app"])
	assert.Equal(t, "x", a.Plugins[0].Options["to"])
	assert.Equal(t, `\.js$`, a.Module.Rules[0].Test)
	assert.Equal(t, "*", a.DevServer.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, 0, a.DevServer.Port)
}

func TestMerge_DeepMergesPointersAndMaps(t *testing.T) {
	a := types.BuildSpec{
		Entry:     map[string]string{"app": "/a.ts"},
		DevServer: &types.DevServerSpec{Host: "localhost", Hot: true},
	}
	b := types.BuildSpec{
		Entry:     map[string]string{"vendor": "/v.ts"},
		DevServer: &types.DevServerSpec{Port: 3000},
	}

	got, err := merge.Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app": "/a.ts", "vendor": "/v.ts"}, got.Entry)
	require.NotNil(t, got.DevServer)
	assert.Equal(t, "localhost", got.DevServer.Host)
	assert.Equal(t, 3000, got.DevServer.Port)
	assert.True(t, got.DevServer.Hot)
}

func TestMerge_FreeFormValues(t *testing.T) {
	a := types.BuildSpec{Extra: map[string]any{
		"resolve": map[string]any{"extensions": []any{".js"}, "alias": map[string]any{"@": "src"}},
		"stats":   "minimal",
	}}
	b := types.BuildSpec{Extra: map[string]any{
		"resolve": map[string]any{"extensions": []any{".ts"}, "alias": map[string]any{"~": "node_modules"}},
		"stats":   "verbose",
	}}

	got, err := merge.Merge(a, b)
	require.NoError(t, err)

	resolve := got.Extra["resolve"].(map[string]any)
	assert.Equal(t, []any{".js", ".ts"}, resolve["extensions"])
	assert.Equal(t, map[string]any{"@": "src", "~": "node_modules"}, resolve["alias"])
	assert.Equal(t, "verbose", got.Extra["stats"])
}

func TestMerge_ShapeConflict(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{"mapping vs sequence", map[string]any{"x": 1}, []any{1}},
		{"sequence vs mapping", []any{1}, map[string]any{"x": 1}},
		{"mapping vs scalar", map[string]any{"x": 1}, "flat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := merge.Merge(
				types.BuildSpec{Extra: map[string]any{"resolve": tt.a}},
				types.BuildSpec{Extra: map[string]any{"resolve": tt.b}},
			)
			require.Error(t, err)
			assert.True(t, errors.Is(err, merge.ErrConfiguration))

			var cfgErr *merge.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "extra.resolve", cfgErr.Path)
		})
	}
}

func TestMerge_ConflictRule(t *testing.T) {
	_, err := merge.Merge(
		types.BuildSpec{Target: types.TargetLegacy},
		types.BuildSpec{Target: types.TargetModern},
	)
	var cfgErr *merge.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "target", cfgErr.Path)

	got, err := merge.Merge(
		types.BuildSpec{Target: types.TargetLegacy},
		types.BuildSpec{Target: types.TargetLegacy},
		types.BuildSpec{Name: "app"},
	)
	require.NoError(t, err)
	assert.Equal(t, types.TargetLegacy, got.Target)
}

func TestLayers_RejectsNonStruct(t *testing.T) {
	_, err := merge.Layers(1, 2)
	assert.ErrorIs(t, err, merge.ErrConfiguration)
}

func TestClone_IsDeep(t *testing.T) {
	orig := types.BuildSpec{
		Optimization: &types.OptimizationPolicy{Minimizers: []types.AdapterRef{{Name: "terser"}}},
	}
	cp := merge.Clone(orig)
	require.True(t, reflect.DeepEqual(orig, cp))

	cp.Optimization.Minimizers[0].Name = "other"
	assert.Equal(t, "terser", orig.Optimization.Minimizers[0].Name)
}

func TestMerge_TypedZeroMeansUnset(t *testing.T) {
	base := types.BuildSpec{
		DevServer: &types.DevServerSpec{HTTPS: true, Port: 8080},
		Extra:     map[string]any{"watch": true},
	}
	later := types.BuildSpec{
		DevServer: &types.DevServerSpec{HTTPS: false, Port: 0, Host: "localhost"},
		Extra:     map[string]any{"watch": false},
	}

	got, err := merge.Merge(base, later)
	require.NoError(t, err)

	require.NotNil(t, got.DevServer)
	assert.True(t, got.DevServer.HTTPS, "typed false does not reset an earlier true")
	assert.Equal(t, 8080, got.DevServer.Port)
	assert.Equal(t, "localhost", got.DevServer.Host)
	assert.Equal(t, false, got.Extra["watch"], "free-form false replaces an earlier true")
}
