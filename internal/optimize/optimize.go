// Package optimize selects the minification and chunk-splitting policy
package optimize

import (
	"github.com/dualpack/dualpack/pkg/types"
)

// StyleGroupTest matches every module that contributes style output
const StyleGroupTest = `\.(pcss|css|vue)$`

// DefaultStyleBundle is used when settings leave vars.cssName empty
const DefaultStyleBundle = "styles"

// SelectOptimization returns the policy for a combination. Development
// gets an empty policy. Production minifies scripts identically for both
// targets; legacy, the only target that writes styles, also forces all
// style modules into one named bundle and minifies it.
func SelectOptimization(settings *types.Settings, target types.BuildTarget, env types.Environment) types.OptimizationPolicy {
	if env != types.EnvironmentProduction {
		return types.OptimizationPolicy{}
	}

	policy := types.OptimizationPolicy{
		Minimizers: []types.AdapterRef{ScriptMinimizer()},
	}

	if target == types.TargetLegacy {
		policy.SplitChunks = &types.SplitChunks{
			DisableDefaults: true,
			CacheGroups: []types.CacheGroup{{
				Name:    StyleBundleName(settings),
				Test:    StyleGroupTest,
				Chunks:  "all",
				Enforce: true,
			}},
		}
		policy.Minimizers = append(policy.Minimizers, StyleMinimizer())
	}

	return policy
}

// StyleBundleName returns the configured style bundle name
func StyleBundleName(settings *types.Settings) string {
	if settings == nil || settings.Vars.CSSName == "" {
		return DefaultStyleBundle
	}
	return settings.Vars.CSSName
}

// ScriptMinimizer is shared by both targets
func ScriptMinimizer() types.AdapterRef {
	return types.AdapterRef{
		Name: "terser",
		Options: map[string]any{
			"cache":     true,
			"parallel":  true,
			"sourceMap": true,
		},
	}
}

// StyleMinimizer minifies the extracted style bundle
func StyleMinimizer() types.AdapterRef {
	return types.AdapterRef{
		Name: "optimize-css-assets",
		Options: map[string]any{
			"cssProcessorOptions": map[string]any{
				"map": map[string]any{
					"inline":     false,
					"annotation": true,
				},
				"safe":            true,
				"discardComments": true,
			},
		},
	}
}
