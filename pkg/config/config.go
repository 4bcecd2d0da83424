// Package config loads project settings and the dev-server environment
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dualpack/dualpack/pkg/types"
	"github.com/dualpack/dualpack/pkg/validation"
)

// SettingsFileNames are looked up, in order, by FindSettingsFile
var SettingsFileNames = []string{
	"dualpack.settings.yaml",
	"dualpack.settings.yml",
	"dualpack.settings.json",
}

// Dev-server defaults used when neither the environment nor the settings
// file provide a value
const (
	DefaultDevServerPublic = "http://localhost:8080"
	DefaultDevServerHost   = "localhost"
	DefaultDevServerPort   = 8080
	DefaultCSSName         = "styles"
)

// ErrSettingsNotFound is returned when no settings file exists
var ErrSettingsNotFound = errors.New("no settings file found")

// Manager handles settings loading
type Manager struct {
	env *viper.Viper
}

// NewManager creates a new settings manager
func NewManager() *Manager {
	return &Manager{env: viper.New()}
}

// FindSettingsFile returns the first settings file found in dir
func FindSettingsFile(dir string) (string, error) {
	for _, name := range SettingsFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrSettingsNotFound, dir, strings.Join(SettingsFileNames, ", "))
}

// LoadDotEnv loads environment files that exist. Variables already set
// in the process environment win.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadSettings reads settings from a JSON or YAML file, applies defaults
// and reads the dev-server environment once.
func (m *Manager) LoadSettings(path string) (*types.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings, err := ParseSettings(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ApplyDefaults(settings)
	settings.DevServer = m.DevServerFromEnv(settings.DevServer)
	return settings, nil
}

// ParseSettings decodes settings. ext selects the format; any other
// extension tries JSON first, then YAML.
func ParseSettings(data []byte, ext string) (*types.Settings, error) {
	var settings types.Settings

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings as JSON: %w", err)
		}
		return &settings, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings as YAML: %w", err)
		}
		return &settings, nil
	}

	if err := json.Unmarshal(data, &settings); err == nil {
		return &settings, nil
	}
	settings = types.Settings{}
	if err := yaml.Unmarshal(data, &settings); err == nil {
		return &settings, nil
	}
	return nil, fmt.Errorf("failed to parse settings as JSON or YAML")
}

// DevServerFromEnv resolves dev-server parameters. DEVSERVER_* variables
// override the file values, which override the defaults.
func (m *Manager) DevServerFromEnv(file types.DevServerSettings) types.DevServerSettings {
	v := m.env

	v.SetDefault("public", firstNonEmpty(file.Public, DefaultDevServerPublic))
	v.SetDefault("host", firstNonEmpty(file.Host, DefaultDevServerHost))
	port := file.Port
	if port == 0 {
		port = DefaultDevServerPort
	}
	v.SetDefault("port", port)
	v.SetDefault("poll", file.Poll)
	v.SetDefault("https", file.HTTPS)

	for _, key := range []string{"public", "host", "port", "poll", "https"} {
		_ = v.BindEnv(key, "DEVSERVER_"+strings.ToUpper(key))
	}

	return types.DevServerSettings{
		Public: strings.TrimRight(v.GetString("public"), "/"),
		Host:   v.GetString("host"),
		Port:   v.GetInt("port"),
		Poll:   v.GetBool("poll"),
		HTTPS:  v.GetBool("https"),
	}
}

// ApplyDefaults fills optional settings
func ApplyDefaults(s *types.Settings) {
	if s.Vars.CSSName == "" {
		s.Vars.CSSName = DefaultCSSName
	}
	if s.CriticalCSS.Suffix == "" {
		s.CriticalCSS.Suffix = "_critical.min.css"
	}
	if s.Workbox.PrecacheManifestFilename == "" && s.Workbox.SwDest != "" {
		s.Workbox.PrecacheManifestFilename = "js/precache-manifest.[manifestHash].js"
	}
	if s.Logging == nil {
		s.Logging = &types.LoggingConfig{Level: types.LogLevelInfo}
	}
	if s.Logging.Level == "" {
		s.Logging.Level = types.LogLevelInfo
	}
}

// Validate validates settings against the project root
func (m *Manager) Validate(s *types.Settings, projectRoot string) *validation.ValidationResult {
	return validation.NewSettingsValidator(projectRoot).Validate(s)
}

// DefaultSettings returns a starter configuration for a new project
func DefaultSettings(name string) *types.Settings {
	s := &types.Settings{
		Name:      name,
		Copyright: name,
		Paths: types.PathSettings{
			Src:       types.SourcePaths{Base: "src", CSS: "src/css", JS: "src/js"},
			Dist:      types.DistPaths{Base: "web/dist", Clean: []string{"**/*"}},
			Templates: "templates",
		},
		URLs: types.URLSettings{
			Live:       "https://example.com/",
			Local:      "http://localhost/",
			Critical:   "http://localhost",
			PublicPath: "/dist/",
		},
		Vars: types.VarSettings{CSSName: DefaultCSSName},
		Browsers: types.BrowserSettings{
			Legacy: []string{"> 1%", "last 2 versions", "Firefox ESR"},
			Modern: []string{"last 2 Chrome versions", "not Chrome < 60", "last 2 Safari versions", "not Safari < 10.1"},
		},
		Entries: types.EntryTable{{Name: "app", Path: "app.ts"}},
		CriticalCSS: types.CriticalCSSSettings{
			Base:              "web/dist/criticalcss/",
			Suffix:            "_critical.min.css",
			CriticalWidth:     1200,
			CriticalHeight:    1200,
			AmpPrefix:         "amp_",
			AmpCriticalWidth:  600,
			AmpCriticalHeight: 19200,
			Pages:             []types.PageSettings{{URL: "/", Template: "index"}},
		},
		DevServer: types.DevServerSettings{
			Public: DefaultDevServerPublic,
			Host:   DefaultDevServerHost,
			Port:   DefaultDevServerPort,
		},
		Workbox: types.WorkboxSettings{
			SwDest:                   "../sw.js",
			PrecacheManifestFilename: "js/precache-manifest.[manifestHash].js",
			Exclude:                  []string{"*.map", "*.html", "manifest*.json"},
			GlobDirectory:            "./web/",
			GlobPatterns:             []string{"offline.html", "offline.svg"},
			OfflineGoogleAnalytics:   true,
			RuntimeCaching: []types.RuntimeCacheRule{{
				URLPattern: `\.(?:png|jpg|jpeg|svg|webp)$`,
				Handler:    types.CacheFirst,
				Options: types.RuntimeCacheOptions{
					CacheName:  "images",
					Expiration: types.CacheExpiration{MaxEntries: 20},
				},
			}},
		},
	}
	ApplyDefaults(s)
	return s
}

// WriteSettings writes settings as YAML or JSON depending on the extension
func WriteSettings(path string, s *types.Settings) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
