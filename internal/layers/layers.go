// Package layers builds the three partial specifications that are merged
// into each concrete build: the base layer shared by every combination,
// the target layer and the environment layer.
package layers

import (
	"path/filepath"

	"github.com/dualpack/dualpack/internal/adapters"
	"github.com/dualpack/dualpack/internal/optimize"
	"github.com/dualpack/dualpack/internal/pipeline"
	"github.com/dualpack/dualpack/pkg/types"
)

// Mode values written into merged specifications
const (
	DevTool        = "inline-source-map"
	ProductionTool = "source-map"
	WebappHTML     = "webapp.html"
	NotifierTitle  = "dualpack"
	devStats       = "errors-only"
	devWatchIgnore = "node_modules"
)

// Inputs carries values computed once per composition and shared by the
// layers of both targets. Layers copy what they use.
type Inputs struct {
	ProjectRoot   string
	Entries       map[string]string
	Banner        string
	CriticalJobs  []types.CriticalResourceJob
	ServiceWorker *types.ServiceWorkerSpec
	PurgePaths    []string
}

// Base is shared by all four combinations
func Base(settings *types.Settings, in Inputs) types.BuildSpec {
	entry := make(map[string]string, len(in.Entries))
	for name, path := range in.Entries {
		entry[name] = path
	}

	return types.BuildSpec{
		Name:  settings.Name,
		Entry: entry,
		Output: types.Output{
			Path:       DistPath(settings, in.ProjectRoot),
			PublicPath: settings.URLs.PublicPath,
		},
		Module: types.ModuleSpec{Rules: []types.StageDescriptor{pipeline.FontStage()}},
		Plugins: []types.PluginDescriptor{{
			Name: adapters.PluginNotifier,
			Options: map[string]any{"notification": types.NotificationSpec{
				Title:           NotifierTitle,
				ExcludeWarnings: true,
				AlwaysNotify:    true,
			}},
		}},
	}
}

// Target holds what differs between legacy and modern in every environment
func Target(settings *types.Settings, target types.BuildTarget) types.BuildSpec {
	spec := types.BuildSpec{
		Target: target,
		Module: types.ModuleSpec{Rules: []types.StageDescriptor{
			pipeline.ScriptStage(settings.Browsers.For(target)),
		}},
	}

	if target == types.TargetLegacy {
		spec.Plugins = append(spec.Plugins, types.PluginDescriptor{
			Name:    adapters.PluginCopy,
			Options: map[string]any{"patterns": append([]types.CopyPattern(nil), settings.Copy...)},
		})
	}
	spec.Plugins = append(spec.Plugins, manifestPlugin(settings, target))
	return spec
}

func manifestPlugin(settings *types.Settings, target types.BuildTarget) types.PluginDescriptor {
	name := "manifest.json"
	if target == types.TargetLegacy {
		name = "manifest-legacy.json"
	}
	return types.PluginDescriptor{
		Name: adapters.PluginManifest,
		Options: map[string]any{
			"fileName": name,
			"basePath": settings.Manifest.BasePath,
			"map":      `(\.[a-f0-9]{32})(\..*)$`,
		},
	}
}

// Environment holds what differs per (target, environment)
func Environment(settings *types.Settings, target types.BuildTarget, env types.Environment, in Inputs) types.BuildSpec {
	spec := types.BuildSpec{
		Target:      target,
		Environment: env,
		Mode:        string(env),
		Output:      types.Output{Filename: ScriptFilename(target, env)},
		Module: types.ModuleSpec{Rules: pipeline.Only(
			pipeline.SelectStages(settings, target, env),
			types.AssetStyle, types.AssetImage,
		)},
	}

	if policy := optimize.SelectOptimization(settings, target, env); !policy.IsEmpty() {
		spec.Optimization = &policy
	}

	if env == types.EnvironmentDevelopment {
		spec.Devtool = DevTool
		spec.Output.PublicPath = settings.DevServer.Public + "/"
		spec.DevServer = devServer(settings, in.ProjectRoot)
		spec.Plugins = append(spec.Plugins, types.PluginDescriptor{Name: adapters.PluginHMR})
		if target == types.TargetModern {
			spec.Plugins = append(spec.Plugins, types.PluginDescriptor{Name: adapters.PluginDashboard})
		}
		return spec
	}

	spec.Devtool = ProductionTool
	if target == types.TargetLegacy {
		spec.Plugins = legacyProductionPlugins(settings, in)
	} else {
		spec.Plugins = modernProductionPlugins(in)
	}
	return spec
}

// ScriptFilename returns the output filename template of a combination
func ScriptFilename(target types.BuildTarget, env types.Environment) string {
	hash := "[hash]"
	if env == types.EnvironmentProduction {
		hash = "[chunkhash]"
	}
	if target == types.TargetLegacy {
		return "js/[name]-legacy." + hash + ".js"
	}
	return "js/[name]." + hash + ".js"
}

// DistPath returns the absolute output root
func DistPath(settings *types.Settings, projectRoot string) string {
	return absJoin(projectRoot, settings.Paths.Dist.Base)
}

func devServer(settings *types.Settings, projectRoot string) *types.DevServerSpec {
	ds := settings.DevServer
	return &types.DevServerSpec{
		Public:       ds.Public,
		ContentBase:  absJoin(projectRoot, settings.Paths.Templates),
		Host:         ds.Host,
		Port:         ds.Port,
		HTTPS:        ds.HTTPS,
		Poll:         ds.Poll,
		Quiet:        true,
		Hot:          true,
		HotOnly:      true,
		Overlay:      true,
		Stats:        devStats,
		WatchIgnored: devWatchIgnore,
		Headers:      map[string]string{"Access-Control-Allow-Origin": "*"},
	}
}

func legacyProductionPlugins(settings *types.Settings, in Inputs) []types.PluginDescriptor {
	purge := settings.PurgeCSS
	purge.Paths = append([]string(nil), in.PurgePaths...)

	plugins := []types.PluginDescriptor{
		{Name: adapters.PluginClean, Options: map[string]any{
			"root":  DistPath(settings, in.ProjectRoot),
			"paths": append([]string(nil), settings.Paths.Dist.Clean...),
		}},
		{Name: adapters.PluginMiniCSSExtract, Options: map[string]any{
			"filename": "css/[name].[chunkhash].css",
		}},
		{Name: adapters.PluginPurgeCSS, Options: map[string]any{"config": purge}},
		{Name: adapters.PluginBanner, Options: map[string]any{"banner": in.Banner, "raw": true}},
		{Name: adapters.PluginHTML, Options: map[string]any{"filename": WebappHTML, "inject": false}},
		{Name: adapters.PluginWebapp, Options: map[string]any{"config": settings.Webapp}},
		{Name: adapters.PluginCreateSymlink, Options: map[string]any{
			"links": append([]types.Symlink(nil), settings.Symlinks...),
		}},
		{Name: adapters.PluginSaveRemoteFile, Options: map[string]any{
			"files": append([]types.RemoteFile(nil), settings.RemoteFiles...),
		}},
		{Name: adapters.PluginBundleAnalyzer, Options: map[string]any{
			"analyzerMode":   "static",
			"reportFilename": "report-legacy.html",
		}},
	}

	for _, job := range in.CriticalJobs {
		plugins = append(plugins, types.PluginDescriptor{
			Name:    adapters.PluginCriticalCSS,
			Options: map[string]any{"job": job},
		})
	}
	return plugins
}

func modernProductionPlugins(in Inputs) []types.PluginDescriptor {
	plugins := []types.PluginDescriptor{
		{Name: adapters.PluginModuleConcatenation},
		{Name: adapters.PluginBanner, Options: map[string]any{"banner": in.Banner, "raw": true}},
		{Name: adapters.PluginImageminWebp},
	}
	if in.ServiceWorker != nil {
		plugins = append(plugins, types.PluginDescriptor{
			Name:    adapters.PluginWorkboxGenerateSW,
			Options: map[string]any{"serviceWorker": *in.ServiceWorker},
		})
	}
	return append(plugins, types.PluginDescriptor{
		Name: adapters.PluginBundleAnalyzer,
		Options: map[string]any{
			"analyzerMode":   "static",
			"reportFilename": "report-modern.html",
		},
	})
}

func absJoin(root, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	joined := filepath.Join(root, rel)
	if abs, err := filepath.Abs(joined); err == nil {
		return abs
	}
	return joined
}
