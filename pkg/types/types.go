// Package types provides core types for dualpack build specifications
package types

import (
	"fmt"
	"strings"
)

// BuildTarget represents the output variant of a build graph
type BuildTarget string

const (
	TargetLegacy BuildTarget = "legacy"
	TargetModern BuildTarget = "modern"
)

// Environment represents the build environment of an invocation
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

// AssetKind represents the kind of asset a stage transforms
type AssetKind string

const (
	AssetScript AssetKind = "script"
	AssetStyle  AssetKind = "style"
	AssetImage  AssetKind = "image"
	AssetFont   AssetKind = "font"
)

// CacheStrategy represents a service-worker runtime caching handler
type CacheStrategy string

const (
	CacheFirst           CacheStrategy = "cacheFirst"
	CacheOnly            CacheStrategy = "cacheOnly"
	NetworkFirst         CacheStrategy = "networkFirst"
	NetworkOnly          CacheStrategy = "networkOnly"
	StaleWhileRevalidate CacheStrategy = "staleWhileRevalidate"
)

// AllTargets returns both build targets in composition order
func AllTargets() []BuildTarget {
	return []BuildTarget{TargetLegacy, TargetModern}
}

// AllEnvironments returns both environments
func AllEnvironments() []Environment {
	return []Environment{EnvironmentDevelopment, EnvironmentProduction}
}

// IsValid reports whether the target is one of the known targets
func (t BuildTarget) IsValid() bool {
	return t == TargetLegacy || t == TargetModern
}

// IsValid reports whether the environment is one of the known environments
func (e Environment) IsValid() bool {
	return e == EnvironmentDevelopment || e == EnvironmentProduction
}

// Short returns the abbreviated environment name used in combination keys
func (e Environment) Short() string {
	switch e {
	case EnvironmentDevelopment:
		return "dev"
	case EnvironmentProduction:
		return "prod"
	default:
		return string(e)
	}
}

// ParseEnvironment parses an environment name, accepting short forms
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development":
		return EnvironmentDevelopment, nil
	case "prod", "production":
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("unknown environment: %s", s)
	}
}

// Combination is one cell of the target x environment matrix
type Combination struct {
	Target      BuildTarget
	Environment Environment
}

// String returns keys like "legacy-dev" or "modern-prod"
func (c Combination) String() string {
	return fmt.Sprintf("%s-%s", c.Target, c.Environment.Short())
}

// AllCombinations returns the four (target, environment) pairs
func AllCombinations() []Combination {
	var combos []Combination
	for _, env := range AllEnvironments() {
		for _, target := range AllTargets() {
			combos = append(combos, Combination{Target: target, Environment: env})
		}
	}
	return combos
}

// BuildSpec is both a configuration layer and a merged build specification.
// The merge tag on each field selects how pkg/merge combines layers:
// overwrite (later non-zero wins), deep (recurse), concat (append in
// layer order) or conflict (differing non-zero values are an error).
type BuildSpec struct {
	Name         string              `json:"name,omitempty" yaml:"name,omitempty" merge:"overwrite"`
	Target       BuildTarget         `json:"target,omitempty" yaml:"target,omitempty" merge:"conflict"`
	Environment  Environment         `json:"environment,omitempty" yaml:"environment,omitempty" merge:"conflict"`
	Mode         string              `json:"mode,omitempty" yaml:"mode,omitempty" merge:"overwrite"`
	Devtool      string              `json:"devtool,omitempty" yaml:"devtool,omitempty" merge:"overwrite"`
	Entry        map[string]string   `json:"entry,omitempty" yaml:"entry,omitempty" merge:"deep"`
	Output       Output              `json:"output" yaml:"output" merge:"deep"`
	Module       ModuleSpec          `json:"module" yaml:"module" merge:"deep"`
	Plugins      []PluginDescriptor  `json:"plugins,omitempty" yaml:"plugins,omitempty" merge:"concat"`
	Optimization *OptimizationPolicy `json:"optimization,omitempty" yaml:"optimization,omitempty" merge:"deep"`
	DevServer    *DevServerSpec      `json:"devServer,omitempty" yaml:"devServer,omitempty" merge:"deep"`
	Artifacts    Artifacts           `json:"artifacts" yaml:"artifacts" merge:"deep"`
	Extra        map[string]any      `json:"extra,omitempty" yaml:"extra,omitempty" merge:"deep"`
}

// Combination returns the (target, environment) pair of the spec
func (s BuildSpec) Combination() Combination {
	return Combination{Target: s.Target, Environment: s.Environment}
}

// StagesOf returns the module rules of the given asset kind, in order
func (s BuildSpec) StagesOf(kind AssetKind) []StageDescriptor {
	var stages []StageDescriptor
	for _, rule := range s.Module.Rules {
		if rule.Kind == kind {
			stages = append(stages, rule)
		}
	}
	return stages
}

// HasPlugin reports whether a plugin with the given name is declared
func (s BuildSpec) HasPlugin(name string) bool {
	for _, p := range s.Plugins {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Output describes where and how bundles are written
type Output struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty" merge:"overwrite"`
	PublicPath  string `json:"publicPath,omitempty" yaml:"publicPath,omitempty" merge:"overwrite"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty" merge:"overwrite"`
	CSSFilename string `json:"cssFilename,omitempty" yaml:"cssFilename,omitempty" merge:"overwrite"`
	Banner      string `json:"banner,omitempty" yaml:"banner,omitempty" merge:"overwrite"`
}

// ModuleSpec holds the ordered transformation rules
type ModuleSpec struct {
	Rules []StageDescriptor `json:"rules,omitempty" yaml:"rules,omitempty" merge:"concat"`
}

// StageDescriptor attaches an ordered adapter chain to matching files
type StageDescriptor struct {
	Kind    AssetKind    `json:"kind" yaml:"kind" merge:"overwrite"`
	Test    string       `json:"test" yaml:"test" merge:"overwrite"`
	Exclude string       `json:"exclude,omitempty" yaml:"exclude,omitempty" merge:"overwrite"`
	Use     []AdapterRef `json:"use" yaml:"use" merge:"concat"`
}

// AdapterNames returns the adapter names of the stage in order
func (s StageDescriptor) AdapterNames() []string {
	names := make([]string, 0, len(s.Use))
	for _, ref := range s.Use {
		names = append(names, ref.Name)
	}
	return names
}

// AdapterRef references a named adapter with its options
type AdapterRef struct {
	Name    string         `json:"name" yaml:"name" merge:"overwrite"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty" merge:"deep"`
}

// PluginDescriptor declares a build-graph plugin by adapter name
type PluginDescriptor struct {
	Name    string         `json:"name" yaml:"name" merge:"overwrite"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty" merge:"deep"`
}

// OptimizationPolicy describes minification and chunk-splitting
type OptimizationPolicy struct {
	SplitChunks *SplitChunks `json:"splitChunks,omitempty" yaml:"splitChunks,omitempty" merge:"deep"`
	Minimizers  []AdapterRef `json:"minimizer,omitempty" yaml:"minimizer,omitempty" merge:"concat"`
}

// IsEmpty reports whether the policy does nothing
func (p OptimizationPolicy) IsEmpty() bool {
	return p.SplitChunks == nil && len(p.Minimizers) == 0
}

// HasCacheGroup reports whether the policy declares the named cache group
func (p OptimizationPolicy) HasCacheGroup(name string) bool {
	if p.SplitChunks == nil {
		return false
	}
	for _, g := range p.SplitChunks.CacheGroups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// SplitChunks groups modules into named bundles
type SplitChunks struct {
	DisableDefaults bool         `json:"disableDefaults,omitempty" yaml:"disableDefaults,omitempty" merge:"overwrite"`
	CacheGroups     []CacheGroup `json:"cacheGroups,omitempty" yaml:"cacheGroups,omitempty" merge:"concat"`
}

// CacheGroup forces matching modules into one named bundle
type CacheGroup struct {
	Name    string `json:"name" yaml:"name"`
	Test    string `json:"test" yaml:"test"`
	Chunks  string `json:"chunks" yaml:"chunks"`
	Enforce bool   `json:"enforce" yaml:"enforce"`
}

// DevServerSpec configures the external development server
type DevServerSpec struct {
	Public       string            `json:"public,omitempty" yaml:"public,omitempty" merge:"overwrite"`
	ContentBase  string            `json:"contentBase,omitempty" yaml:"contentBase,omitempty" merge:"overwrite"`
	Host         string            `json:"host,omitempty" yaml:"host,omitempty" merge:"overwrite"`
	Port         int               `json:"port,omitempty" yaml:"port,omitempty" merge:"overwrite"`
	HTTPS        bool              `json:"https" yaml:"https" merge:"overwrite"`
	Poll         bool              `json:"poll" yaml:"poll" merge:"overwrite"`
	Quiet        bool              `json:"quiet" yaml:"quiet" merge:"overwrite"`
	Hot          bool              `json:"hot" yaml:"hot" merge:"overwrite"`
	HotOnly      bool              `json:"hotOnly" yaml:"hotOnly" merge:"overwrite"`
	Overlay      bool              `json:"overlay" yaml:"overlay" merge:"overwrite"`
	Stats        string            `json:"stats,omitempty" yaml:"stats,omitempty" merge:"overwrite"`
	WatchIgnored string            `json:"watchIgnored,omitempty" yaml:"watchIgnored,omitempty" merge:"overwrite"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" merge:"deep"`
}

// Artifacts collects the declarative effects of plugin adapters
type Artifacts struct {
	Manifest      string                `json:"manifest,omitempty" yaml:"manifest,omitempty" merge:"conflict"`
	CleanRoot     string                `json:"cleanRoot,omitempty" yaml:"cleanRoot,omitempty" merge:"overwrite"`
	CleanPaths    []string              `json:"cleanPaths,omitempty" yaml:"cleanPaths,omitempty" merge:"concat"`
	Copy          []CopyPattern         `json:"copy,omitempty" yaml:"copy,omitempty" merge:"concat"`
	Symlinks      []Symlink             `json:"symlinks,omitempty" yaml:"symlinks,omitempty" merge:"concat"`
	RemoteFiles   []RemoteFile          `json:"remoteFiles,omitempty" yaml:"remoteFiles,omitempty" merge:"concat"`
	CriticalJobs  []CriticalResourceJob `json:"criticalJobs,omitempty" yaml:"criticalJobs,omitempty" merge:"concat"`
	ServiceWorker *ServiceWorkerSpec    `json:"serviceWorker,omitempty" yaml:"serviceWorker,omitempty" merge:"deep"`
	PurgeCSS      *PurgeCSSConfig       `json:"purgeCss,omitempty" yaml:"purgeCss,omitempty" merge:"deep"`
	Webapp        *WebappConfig         `json:"webapp,omitempty" yaml:"webapp,omitempty" merge:"deep"`
	HTML          string                `json:"html,omitempty" yaml:"html,omitempty" merge:"overwrite"`
	Report        string                `json:"report,omitempty" yaml:"report,omitempty" merge:"overwrite"`
	ImageVariants []string              `json:"imageVariants,omitempty" yaml:"imageVariants,omitempty" merge:"concat"`
	HotReload     bool                  `json:"hotReload,omitempty" yaml:"hotReload,omitempty" merge:"overwrite"`
	Dashboard     bool                  `json:"dashboard,omitempty" yaml:"dashboard,omitempty" merge:"overwrite"`
	Notifications *NotificationSpec     `json:"notifications,omitempty" yaml:"notifications,omitempty" merge:"deep"`
}

// NotificationSpec configures build status notifications
type NotificationSpec struct {
	Title           string `json:"title" yaml:"title" merge:"overwrite"`
	ExcludeWarnings bool   `json:"excludeWarnings" yaml:"excludeWarnings" merge:"overwrite"`
	AlwaysNotify    bool   `json:"alwaysNotify" yaml:"alwaysNotify" merge:"overwrite"`
}

// PageDescriptor is a page whose above-the-fold styles get extracted
type PageDescriptor struct {
	URLPath        string `json:"urlPath" yaml:"urlPath"`
	TemplateName   string `json:"templateName" yaml:"templateName"`
	ViewportWidth  int    `json:"viewportWidth" yaml:"viewportWidth"`
	ViewportHeight int    `json:"viewportHeight" yaml:"viewportHeight"`
}

// CriticalResourceJob is one page's critical-style extraction
type CriticalResourceJob struct {
	Page        PageDescriptor `json:"page" yaml:"page"`
	Base        string         `json:"base" yaml:"base"`
	Source      string         `json:"src" yaml:"src"`
	Destination string         `json:"dest" yaml:"dest"`
	Width       int            `json:"width" yaml:"width"`
	Height      int            `json:"height" yaml:"height"`
	Extract     bool           `json:"extract" yaml:"extract"`
	Inline      bool           `json:"inline" yaml:"inline"`
	Minify      bool           `json:"minify" yaml:"minify"`
}

// ServiceWorkerSpec is the descriptor handed to the service-worker generator
type ServiceWorkerSpec struct {
	SwDest                   string             `json:"swDest" yaml:"swDest" merge:"overwrite"`
	PrecacheManifestFilename string             `json:"precacheManifestFilename" yaml:"precacheManifestFilename" merge:"overwrite"`
	ImportScripts            []string           `json:"importScripts,omitempty" yaml:"importScripts,omitempty" merge:"concat"`
	Exclude                  []string           `json:"exclude,omitempty" yaml:"exclude,omitempty" merge:"concat"`
	GlobDirectory            string             `json:"globDirectory,omitempty" yaml:"globDirectory,omitempty" merge:"overwrite"`
	GlobPatterns             []string           `json:"globPatterns,omitempty" yaml:"globPatterns,omitempty" merge:"concat"`
	OfflineGoogleAnalytics   bool               `json:"offlineGoogleAnalytics" yaml:"offlineGoogleAnalytics" merge:"overwrite"`
	RuntimeCaching           []RuntimeCacheRule `json:"runtimeCaching,omitempty" yaml:"runtimeCaching,omitempty" merge:"concat"`
}

// RuntimeCacheRule is one runtime caching route for the service worker
type RuntimeCacheRule struct {
	URLPattern string              `json:"urlPattern" yaml:"urlPattern"`
	Handler    CacheStrategy       `json:"handler" yaml:"handler"`
	Options    RuntimeCacheOptions `json:"options" yaml:"options"`
}

// RuntimeCacheOptions holds the named cache and its expiration
type RuntimeCacheOptions struct {
	CacheName  string          `json:"cacheName" yaml:"cacheName"`
	Expiration CacheExpiration `json:"expiration" yaml:"expiration"`
}

// CacheExpiration bounds a runtime cache
type CacheExpiration struct {
	MaxEntries int `json:"maxEntries,omitempty" yaml:"maxEntries,omitempty"`
}
