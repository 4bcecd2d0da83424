// Package critical plans and runs per-page critical style extraction
package critical

import (
	"strings"

	"github.com/dualpack/dualpack/pkg/types"
)

// JobBase is the base directory handed to the extractor
const JobBase = "./"

// PlanCriticalResources returns one extraction job per configured page,
// in page order. Templates that start with the AMP prefix use the AMP
// viewport, all others the default one. It only makes sense for
// production builds; callers decide when to invoke it.
func PlanCriticalResources(settings *types.Settings) []types.CriticalResourceJob {
	cfg := settings.CriticalCSS
	jobs := make([]types.CriticalResourceJob, 0, len(cfg.Pages))

	for _, page := range cfg.Pages {
		width, height := Viewport(cfg, page.Template)
		jobs = append(jobs, types.CriticalResourceJob{
			Page: types.PageDescriptor{
				URLPath:        page.URL,
				TemplateName:   page.Template,
				ViewportWidth:  width,
				ViewportHeight: height,
			},
			Base:        JobBase,
			Source:      settings.URLs.Critical + page.URL,
			Destination: cfg.Base + page.Template + cfg.Suffix,
			Width:       width,
			Height:      height,
			Extract:     false,
			Inline:      false,
			Minify:      true,
		})
	}
	return jobs
}

// Viewport returns the extraction geometry for a template
func Viewport(cfg types.CriticalCSSSettings, template string) (width, height int) {
	if IsAMP(cfg, template) {
		return cfg.AmpCriticalWidth, cfg.AmpCriticalHeight
	}
	return cfg.CriticalWidth, cfg.CriticalHeight
}

// IsAMP reports whether template names an AMP page
func IsAMP(cfg types.CriticalCSSSettings, template string) bool {
	return cfg.AmpPrefix != "" && strings.HasPrefix(template, cfg.AmpPrefix)
}
