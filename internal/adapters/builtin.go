package adapters

import (
	"github.com/dualpack/dualpack/pkg/merge"
	"github.com/dualpack/dualpack/pkg/types"
)

// Plugin names used by the build layers
const (
	PluginNotifier            = "notifier"
	PluginCopy                = "copy"
	PluginManifest            = "manifest"
	PluginClean               = "clean"
	PluginMiniCSSExtract      = "mini-css-extract"
	PluginPurgeCSS            = "purgecss"
	PluginBanner              = "banner"
	PluginHTML                = "html"
	PluginWebapp              = "webapp"
	PluginCreateSymlink       = "create-symlink"
	PluginSaveRemoteFile      = "save-remote-file"
	PluginBundleAnalyzer      = "bundle-analyzer"
	PluginCriticalCSS         = "critical-css"
	PluginModuleConcatenation = "module-concatenation"
	PluginImageminWebp        = "imagemin-webp"
	PluginWorkboxGenerateSW   = "workbox-generate-sw"
	PluginHMR                 = "hmr"
	PluginDashboard           = "dashboard"
)

// Loader names used by the pipeline stages
var loaderNames = []string{
	"babel-loader",
	"style-loader",
	"css-loader",
	"postcss-loader",
	"resolve-url-loader",
	"ignore-loader",
	"file-loader",
	"img-loader",
	"mini-css-extract-loader",
}

var minimizerNames = []string{
	"terser",
	"optimize-css-assets",
}

// reference is a loader or minimizer. It has no effect on the specification.
type reference struct {
	name string
	kind Kind
}

func (r reference) Name() string { return r.name }
func (r reference) Kind() Kind   { return r.kind }

func (r reference) Apply(spec types.BuildSpec, _ map[string]any) (types.BuildSpec, error) {
	return merge.Clone(spec), nil
}

// plugin records its effect on a copy of the specification
type plugin struct {
	name  string
	apply func(spec *types.BuildSpec, opts map[string]any) error
}

func (p plugin) Name() string { return p.name }
func (p plugin) Kind() Kind   { return KindPlugin }

func (p plugin) Apply(spec types.BuildSpec, opts map[string]any) (types.BuildSpec, error) {
	out := merge.Clone(spec)
	if p.apply == nil {
		return out, nil
	}
	if err := p.apply(&out, opts); err != nil {
		return types.BuildSpec{}, err
	}
	return out, nil
}

// NewPlugin creates a plugin adapter from a function mutating a private copy
func NewPlugin(name string, apply func(spec *types.BuildSpec, opts map[string]any) error) Adapter {
	return plugin{name: name, apply: apply}
}

// NewLoader creates a loader reference
func NewLoader(name string) Adapter {
	return reference{name: name, kind: KindLoader}
}

// NewMinimizer creates a minimizer reference
func NewMinimizer(name string) Adapter {
	return reference{name: name, kind: KindMinimizer}
}

// DefaultRegistry returns a registry holding every built-in adapter
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, name := range loaderNames {
		r.MustRegister(NewLoader(name))
	}
	for _, name := range minimizerNames {
		r.MustRegister(NewMinimizer(name))
	}
	r.MustRegister(builtinPlugins()...)
	return r
}

func builtinPlugins() []Adapter {
	return []Adapter{
		NewPlugin(PluginNotifier, func(spec *types.BuildSpec, opts map[string]any) error {
			n, _, err := option[types.NotificationSpec](opts, "notification")
			if err != nil {
				return err
			}
			spec.Artifacts.Notifications = &n
			return nil
		}),
		NewPlugin(PluginCopy, func(spec *types.BuildSpec, opts map[string]any) error {
			patterns, _, err := option[[]types.CopyPattern](opts, "patterns")
			spec.Artifacts.Copy = append(spec.Artifacts.Copy, patterns...)
			return err
		}),
		NewPlugin(PluginManifest, func(spec *types.BuildSpec, opts map[string]any) error {
			name, err := stringOption(opts, "fileName")
			if err != nil {
				return err
			}
			if spec.Artifacts.Manifest != "" && spec.Artifacts.Manifest != name {
				return &merge.ConfigurationError{
					Path:   "artifacts.manifest",
					Reason: "a build graph writes exactly one manifest",
				}
			}
			spec.Artifacts.Manifest = name
			return nil
		}),
		NewPlugin(PluginClean, func(spec *types.BuildSpec, opts map[string]any) error {
			root, err := stringOption(opts, "root")
			if err != nil {
				return err
			}
			paths, _, err := option[[]string](opts, "paths")
			spec.Artifacts.CleanRoot = root
			spec.Artifacts.CleanPaths = append(spec.Artifacts.CleanPaths, paths...)
			return err
		}),
		NewPlugin(PluginMiniCSSExtract, func(spec *types.BuildSpec, opts map[string]any) error {
			filename, err := stringOption(opts, "filename")
			spec.Output.CSSFilename = filename
			return err
		}),
		NewPlugin(PluginPurgeCSS, func(spec *types.BuildSpec, opts map[string]any) error {
			cfg, _, err := option[types.PurgeCSSConfig](opts, "config")
			spec.Artifacts.PurgeCSS = &cfg
			return err
		}),
		NewPlugin(PluginBanner, func(spec *types.BuildSpec, opts map[string]any) error {
			banner, err := stringOption(opts, "banner")
			spec.Output.Banner = banner
			return err
		}),
		NewPlugin(PluginHTML, func(spec *types.BuildSpec, opts map[string]any) error {
			filename, err := stringOption(opts, "filename")
			spec.Artifacts.HTML = filename
			return err
		}),
		NewPlugin(PluginWebapp, func(spec *types.BuildSpec, opts map[string]any) error {
			cfg, _, err := option[types.WebappConfig](opts, "config")
			spec.Artifacts.Webapp = &cfg
			return err
		}),
		NewPlugin(PluginCreateSymlink, func(spec *types.BuildSpec, opts map[string]any) error {
			links, _, err := option[[]types.Symlink](opts, "links")
			spec.Artifacts.Symlinks = append(spec.Artifacts.Symlinks, links...)
			return err
		}),
		NewPlugin(PluginSaveRemoteFile, func(spec *types.BuildSpec, opts map[string]any) error {
			files, _, err := option[[]types.RemoteFile](opts, "files")
			spec.Artifacts.RemoteFiles = append(spec.Artifacts.RemoteFiles, files...)
			return err
		}),
		NewPlugin(PluginBundleAnalyzer, func(spec *types.BuildSpec, opts map[string]any) error {
			report, err := stringOption(opts, "reportFilename")
			spec.Artifacts.Report = report
			return err
		}),
		NewPlugin(PluginCriticalCSS, func(spec *types.BuildSpec, opts map[string]any) error {
			job, ok, err := option[types.CriticalResourceJob](opts, "job")
			if ok {
				spec.Artifacts.CriticalJobs = append(spec.Artifacts.CriticalJobs, job)
			}
			return err
		}),
		NewPlugin(PluginModuleConcatenation, nil),
		NewPlugin(PluginImageminWebp, func(spec *types.BuildSpec, opts map[string]any) error {
			spec.Artifacts.ImageVariants = append(spec.Artifacts.ImageVariants, "webp")
			return nil
		}),
		NewPlugin(PluginWorkboxGenerateSW, func(spec *types.BuildSpec, opts map[string]any) error {
			sw, ok, err := option[types.ServiceWorkerSpec](opts, "serviceWorker")
			if ok {
				spec.Artifacts.ServiceWorker = &sw
			}
			return err
		}),
		NewPlugin(PluginHMR, func(spec *types.BuildSpec, opts map[string]any) error {
			spec.Artifacts.HotReload = true
			return nil
		}),
		NewPlugin(PluginDashboard, func(spec *types.BuildSpec, opts map[string]any) error {
			spec.Artifacts.Dashboard = true
			return nil
		}),
	}
}
