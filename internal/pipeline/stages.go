// Package pipeline selects the asset transformation stages for a
// (target, environment) pair.
package pipeline

import (
	"fmt"

	"github.com/dualpack/dualpack/pkg/types"
)

// File patterns matched by each stage
const (
	ScriptTest = `\.(js|jsx|ts|tsx)$`
	StyleTest  = `\.(pcss|css)$`
	ImageTest  = `\.(png|jpe?g|gif|svg|webp)$`
	FontTest   = `\.(ttf|eot|woff2?)$`

	scriptExclude = `node_modules`
)

// StyleMode is how a build graph treats style output
type StyleMode string

const (
	// StyleSuppressed drops style output; another target emits it
	StyleSuppressed StyleMode = "suppressed"
	// StyleInline injects styles into the running page, no file written
	StyleInline StyleMode = "inline"
	// StyleExtract writes styles to a physical file
	StyleExtract StyleMode = "extract"
)

// styleModes is the whole style policy. Exactly one target handles
// styles per environment so the two bundles never both ship them:
// modern injects them during development, legacy extracts the shared
// file in production.
var styleModes = map[types.Combination]StyleMode{
	{Target: types.TargetLegacy, Environment: types.EnvironmentDevelopment}: StyleSuppressed,
	{Target: types.TargetModern, Environment: types.EnvironmentDevelopment}: StyleInline,
	{Target: types.TargetLegacy, Environment: types.EnvironmentProduction}:  StyleExtract,
	{Target: types.TargetModern, Environment: types.EnvironmentProduction}:  StyleSuppressed,
}

// StyleModeFor returns the style mode of a combination
func StyleModeFor(target types.BuildTarget, env types.Environment) StyleMode {
	mode, ok := styleModes[types.Combination{Target: target, Environment: env}]
	if !ok {
		panic(fmt.Sprintf("pipeline: no style mode for %s/%s", target, env))
	}
	return mode
}

// EmitsStyleFile reports whether the combination writes a style file
func EmitsStyleFile(target types.BuildTarget, env types.Environment) bool {
	return StyleModeFor(target, env) == StyleExtract
}

// SelectStages returns the ordered stage list for a combination:
// script, style, image, font.
func SelectStages(settings *types.Settings, target types.BuildTarget, env types.Environment) []types.StageDescriptor {
	return []types.StageDescriptor{
		ScriptStage(settings.Browsers.For(target)),
		StyleStage(target, env),
		ImageStage(settings, target, env),
		FontStage(),
	}
}

// Only returns the stages of the given kinds, keeping their order
func Only(stages []types.StageDescriptor, kinds ...types.AssetKind) []types.StageDescriptor {
	var out []types.StageDescriptor
	for _, s := range stages {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// ScriptStage transpiles scripts for the given browser list. The list is
// the only thing that differs between the legacy and modern script stage.
func ScriptStage(browsers []string) types.StageDescriptor {
	list := make([]any, 0, len(browsers))
	for _, b := range browsers {
		list = append(list, b)
	}

	return types.StageDescriptor{
		Kind:    types.AssetScript,
		Test:    ScriptTest,
		Exclude: scriptExclude,
		Use: []types.AdapterRef{{
			Name: "babel-loader",
			Options: map[string]any{
				"presets": []any{
					[]any{"@babel/preset-env", map[string]any{
						"modules":     false,
						"useBuiltIns": "entry",
						"targets": map[string]any{
							"browsers": list,
						},
					}},
				},
				"plugins": []any{
					"@babel/plugin-syntax-dynamic-import",
					[]any{"@babel/plugin-transform-runtime", map[string]any{
						"regenerator": true,
					}},
				},
			},
		}},
	}
}

// StyleStage builds the style stage from the style matrix
func StyleStage(target types.BuildTarget, env types.Environment) types.StageDescriptor {
	stage := types.StageDescriptor{Kind: types.AssetStyle, Test: StyleTest}

	switch StyleModeFor(target, env) {
	case StyleSuppressed:
		stage.Use = []types.AdapterRef{{Name: "ignore-loader"}}
	case StyleInline:
		stage.Use = append([]types.AdapterRef{{Name: "style-loader"}}, styleProcessing()...)
	case StyleExtract:
		stage.Use = append([]types.AdapterRef{{Name: "mini-css-extract-loader"}}, styleProcessing()...)
	}
	return stage
}

// styleProcessing resolves imports, rewrites urls and runs PostCSS
func styleProcessing() []types.AdapterRef {
	return []types.AdapterRef{
		{Name: "css-loader", Options: map[string]any{"importLoaders": 2, "sourceMap": true}},
		{Name: "resolve-url-loader"},
		{Name: "postcss-loader", Options: map[string]any{"sourceMap": true}},
	}
}

// ImageStage hashes image filenames; production appends an optimisation
// adapter for the modern target, and for legacy when configured.
func ImageStage(settings *types.Settings, target types.BuildTarget, env types.Environment) types.StageDescriptor {
	stage := types.StageDescriptor{
		Kind: types.AssetImage,
		Test: ImageTest,
		Use: []types.AdapterRef{{
			Name:    "file-loader",
			Options: map[string]any{"name": "img/[name].[hash].[ext]"},
		}},
	}

	if env == types.EnvironmentProduction && (target == types.TargetModern || settings.Images.OptimizeLegacy) {
		stage.Use = append(stage.Use, imageOptimizer())
	}
	return stage
}

func imageOptimizer() types.AdapterRef {
	return types.AdapterRef{
		Name: "img-loader",
		Options: map[string]any{
			"plugins": []any{
				map[string]any{"name": "imagemin-gifsicle", "interlaced": true},
				map[string]any{"name": "imagemin-mozjpeg", "progressive": true, "arithmetic": false},
				map[string]any{"name": "imagemin-optipng", "optimizationLevel": 5},
				map[string]any{"name": "imagemin-svgo", "plugins": []any{
					map[string]any{"convertPathData": false},
				}},
			},
		},
	}
}

// FontStage is identical for every combination
func FontStage() types.StageDescriptor {
	return types.StageDescriptor{
		Kind: types.AssetFont,
		Test: FontTest,
		Use: []types.AdapterRef{{
			Name:    "file-loader",
			Options: map[string]any{"name": "fonts/[name].[ext]"},
		}},
	}
}
