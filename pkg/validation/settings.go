// Package validation checks project settings before any build graph is composed
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dualpack/dualpack/internal/offline"
	"github.com/dualpack/dualpack/pkg/types"
)

// ErrInvalidSettings matches every error returned by ValidationResult.Err
var ErrInvalidSettings = errors.New("invalid settings")

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

// ValidationError is one finding
type ValidationError struct {
	Section string
	Field   string
	Message string
	Level   ValidationLevel
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Section, e.Field, e.Message)
}

// ValidationResult collects the findings of one validation run
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError records a finding; error-level findings invalidate the result
func (r *ValidationResult) AddError(section, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Section: section,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// Filter returns the findings of one level
func (r *ValidationResult) Filter(level ValidationLevel) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Err returns nil for a valid result, otherwise an error listing every
// error-level finding.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Filter(ValidationLevelError) {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(msgs, "; "))
}

// SettingsValidator validates settings against a project root
type SettingsValidator struct {
	projectRoot string
}

// NewSettingsValidator creates a validator. An empty projectRoot skips
// filesystem checks.
func NewSettingsValidator(projectRoot string) *SettingsValidator {
	return &SettingsValidator{projectRoot: projectRoot}
}

// Validate runs every check
func (v *SettingsValidator) Validate(s *types.Settings) *ValidationResult {
	result := &ValidationResult{Valid: true}

	v.validateBasics(s, result)
	v.validateEntries(s, result)
	v.validateBrowsers(s, result)
	v.validateCritical(s, result)
	v.validateDevServer(s, result)
	v.validateWorkbox(s, result)
	v.validatePaths(s, result)

	return result
}

func (v *SettingsValidator) validateBasics(s *types.Settings, result *ValidationResult) {
	if s.Name == "" {
		result.AddError("settings", "name", "project name is empty; banners and the notifier will show nothing", ValidationLevelWarning)
	}
	if s.Paths.Dist.Base == "" {
		result.AddError("paths", "dist.base", "output directory is required", ValidationLevelError)
	}
	if s.URLs.PublicPath == "" {
		result.AddError("urls", "publicPath", "public path is empty; assets will be served from the page origin", ValidationLevelInfo)
	}
}

func (v *SettingsValidator) validateEntries(s *types.Settings, result *ValidationResult) {
	if len(s.Entries) == 0 {
		result.AddError("entries", "", "at least one entry point is required", ValidationLevelError)
		return
	}

	names := make(map[string]bool, len(s.Entries))
	for _, e := range s.Entries {
		switch {
		case e.Name == "":
			result.AddError("entries", "", fmt.Sprintf("entry with path %q has no name", e.Path), ValidationLevelError)
		case e.Path == "":
			result.AddError("entries", e.Name, "entry has no source path", ValidationLevelError)
		case names[e.Name]:
			result.AddError("entries", e.Name, "entry declared twice; the last path wins", ValidationLevelWarning)
		}
		names[e.Name] = true
	}
}

func (v *SettingsValidator) validateBrowsers(s *types.Settings, result *ValidationResult) {
	for _, target := range types.AllTargets() {
		if len(s.Browsers.For(target)) == 0 {
			result.AddError("browsers", string(target), "browser list is empty; the transpiler falls back to its defaults", ValidationLevelWarning)
		}
	}
}

func (v *SettingsValidator) validateCritical(s *types.Settings, result *ValidationResult) {
	cfg := s.CriticalCSS
	if len(cfg.Pages) == 0 {
		return
	}

	if s.URLs.Critical == "" {
		result.AddError("urls", "critical", "critical origin is required when pages are configured", ValidationLevelError)
	}
	if cfg.CriticalWidth <= 0 || cfg.CriticalHeight <= 0 {
		result.AddError("criticalCss", "criticalWidth", "default viewport must be positive", ValidationLevelError)
	}
	if cfg.AmpPrefix == "" {
		result.AddError("criticalCss", "ampPrefix", "no AMP prefix; every page uses the default viewport", ValidationLevelInfo)
	} else if cfg.AmpCriticalWidth <= 0 || cfg.AmpCriticalHeight <= 0 {
		result.AddError("criticalCss", "ampCriticalWidth", "AMP viewport must be positive", ValidationLevelError)
	}

	for i, page := range cfg.Pages {
		if page.URL == "" {
			result.AddError("criticalCss", fmt.Sprintf("pages[%d].url", i), "page url is required", ValidationLevelError)
		}
		if page.Template == "" {
			result.AddError("criticalCss", fmt.Sprintf("pages[%d].template", i), "page template is required", ValidationLevelError)
		}
	}
}

func (v *SettingsValidator) validateDevServer(s *types.Settings, result *ValidationResult) {
	if s.DevServer.Port < 1 || s.DevServer.Port > 65535 {
		result.AddError("devServer", "port", fmt.Sprintf("port %d is out of range", s.DevServer.Port), ValidationLevelError)
	}
	if s.DevServer.Public == "" {
		result.AddError("devServer", "public", "public URL is required", ValidationLevelError)
	}
}

func (v *SettingsValidator) validateWorkbox(s *types.Settings, result *ValidationResult) {
	if _, err := offline.SelectRuntimeCaching(s.Workbox.RuntimeCaching); err != nil {
		result.AddError("workbox", "runtimeCaching", err.Error(), ValidationLevelError)
	}
	for i, rule := range s.Workbox.RuntimeCaching {
		if _, err := regexp.Compile(rule.URLPattern); err != nil {
			result.AddError("workbox", fmt.Sprintf("runtimeCaching[%d].urlPattern", i), "pattern is not a valid regular expression", ValidationLevelWarning)
		}
	}
}

func (v *SettingsValidator) validatePaths(s *types.Settings, result *ValidationResult) {
	if v.projectRoot == "" {
		return
	}

	checks := []struct {
		field string
		path  string
	}{
		{"src.js", s.Paths.Src.JS},
		{"templates", s.Paths.Templates},
	}
	for _, c := range checks {
		if c.path == "" {
			continue
		}
		full := c.path
		if !filepath.IsAbs(full) {
			full = filepath.Join(v.projectRoot, full)
		}
		if _, err := os.Stat(full); os.IsNotExist(err) {
			result.AddError("paths", c.field, fmt.Sprintf("directory does not exist: %s", c.path), ValidationLevelWarning)
		}
	}
}
