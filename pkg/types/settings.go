package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Settings holds all project-specific declarative data.
// It is loaded once at startup and treated as read-only afterwards.
type Settings struct {
	Name        string                `json:"name" yaml:"name"`
	Copyright   string                `json:"copyright" yaml:"copyright"`
	Author      string                `json:"author,omitempty" yaml:"author,omitempty"`
	Paths       PathSettings          `json:"paths" yaml:"paths"`
	URLs        URLSettings           `json:"urls" yaml:"urls"`
	Vars        VarSettings           `json:"vars" yaml:"vars"`
	Browsers    BrowserSettings       `json:"browsers" yaml:"browsers"`
	Entries     EntryTable            `json:"entries" yaml:"entries"`
	Copy        []CopyPattern         `json:"copy,omitempty" yaml:"copy,omitempty"`
	CriticalCSS CriticalCSSSettings   `json:"criticalCss" yaml:"criticalCss"`
	DevServer   DevServerSettings     `json:"devServer" yaml:"devServer"`
	Manifest    ManifestSettings      `json:"manifest" yaml:"manifest"`
	PurgeCSS    PurgeCSSConfig        `json:"purgeCss" yaml:"purgeCss"`
	RemoteFiles []RemoteFile          `json:"saveRemoteFile,omitempty" yaml:"saveRemoteFile,omitempty"`
	Symlinks    []Symlink             `json:"createSymlink,omitempty" yaml:"createSymlink,omitempty"`
	Webapp      WebappConfig          `json:"webapp" yaml:"webapp"`
	Workbox     WorkboxSettings       `json:"workbox" yaml:"workbox"`
	Images      ImageSettings         `json:"images" yaml:"images"`
	Executor    ExecutorSettings      `json:"executor" yaml:"executor"`
	Logging     *LoggingConfig        `json:"logging,omitempty" yaml:"logging,omitempty"`
	Notify      *NotificationSettings `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// PathSettings holds source and output locations
type PathSettings struct {
	Src       SourcePaths `json:"src" yaml:"src"`
	Dist      DistPaths   `json:"dist" yaml:"dist"`
	Templates string      `json:"templates" yaml:"templates"`
}

// SourcePaths holds the per-kind source folders
type SourcePaths struct {
	Base string `json:"base" yaml:"base"`
	CSS  string `json:"css" yaml:"css"`
	JS   string `json:"js" yaml:"js"`
}

// DistPaths holds the output root and subfolders purged before production builds
type DistPaths struct {
	Base  string   `json:"base" yaml:"base"`
	Clean []string `json:"clean,omitempty" yaml:"clean,omitempty"`
}

// URLSettings holds origins and the public asset path
type URLSettings struct {
	Live       string `json:"live" yaml:"live"`
	Local      string `json:"local" yaml:"local"`
	Critical   string `json:"critical" yaml:"critical"`
	PublicPath string `json:"publicPath" yaml:"publicPath"`
}

// VarSettings holds naming variables
type VarSettings struct {
	CSSName string `json:"cssName" yaml:"cssName"`
}

// BrowserSettings holds the browser-compatibility lists per target
type BrowserSettings struct {
	Legacy []string `json:"legacy" yaml:"legacy"`
	Modern []string `json:"modern" yaml:"modern"`
}

// For returns the browser list of a target
func (b BrowserSettings) For(target BuildTarget) []string {
	if target == TargetLegacy {
		return b.Legacy
	}
	return b.Modern
}

// Entry maps a logical entry name to a source path relative to the script folder
type Entry struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// EntryTable is an ordered entry-point table.
// It decodes from either a mapping (name: path) or a list of entries.
type EntryTable []Entry

// UnmarshalJSON keeps the key order of a JSON object
func (t *EntryTable) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Entry
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*t = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("entries: expected object or array")
	}

	var table EntryTable
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("entries: expected string key")
		}
		var path string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("entries: %s: %w", key, err)
		}
		table = append(table, Entry{Name: key, Path: path})
	}
	*t = table
	return nil
}

// MarshalJSON writes the table as an ordered JSON object
func (t EntryTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML keeps the key order of a YAML mapping
func (t *EntryTable) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []Entry
		if err := node.Decode(&list); err != nil {
			return err
		}
		*t = list
		return nil
	case yaml.MappingNode:
		var table EntryTable
		for i := 0; i+1 < len(node.Content); i += 2 {
			var path string
			if err := node.Content[i+1].Decode(&path); err != nil {
				return fmt.Errorf("entries: %s: %w", node.Content[i].Value, err)
			}
			table = append(table, Entry{Name: node.Content[i].Value, Path: path})
		}
		*t = table
		return nil
	default:
		return fmt.Errorf("entries: expected mapping or sequence at line %d", node.Line)
	}
}

// CopyPattern copies files into the build output
type CopyPattern struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// RemoteFile is a remote asset saved locally at build time
type RemoteFile struct {
	URL      string `json:"url" yaml:"url"`
	Filepath string `json:"filepath" yaml:"filepath"`
}

// Symlink links an output file to another location
type Symlink struct {
	Origin  string `json:"origin" yaml:"origin"`
	Symlink string `json:"symlink" yaml:"symlink"`
}

// WebappConfig configures favicon and web-app manifest generation
type WebappConfig struct {
	Logo   string `json:"logo" yaml:"logo" merge:"overwrite"`
	Prefix string `json:"prefix" yaml:"prefix" merge:"overwrite"`
}

// PurgeCSSConfig configures unused-style removal
type PurgeCSSConfig struct {
	Paths             []string `json:"paths,omitempty" yaml:"paths,omitempty" merge:"concat"`
	Whitelist         []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty" merge:"concat"`
	WhitelistPatterns []string `json:"whitelistPatterns,omitempty" yaml:"whitelistPatterns,omitempty" merge:"concat"`
	Extensions        []string `json:"extensions,omitempty" yaml:"extensions,omitempty" merge:"concat"`
}

// CriticalCSSSettings configures per-page critical style extraction
type CriticalCSSSettings struct {
	Base              string         `json:"base" yaml:"base"`
	Suffix            string         `json:"suffix" yaml:"suffix"`
	CriticalWidth     int            `json:"criticalWidth" yaml:"criticalWidth"`
	CriticalHeight    int            `json:"criticalHeight" yaml:"criticalHeight"`
	AmpPrefix         string         `json:"ampPrefix" yaml:"ampPrefix"`
	AmpCriticalWidth  int            `json:"ampCriticalWidth" yaml:"ampCriticalWidth"`
	AmpCriticalHeight int            `json:"ampCriticalHeight" yaml:"ampCriticalHeight"`
	Pages             []PageSettings `json:"pages" yaml:"pages"`
}

// PageSettings declares a page for critical style extraction
type PageSettings struct {
	URL      string `json:"url" yaml:"url"`
	Template string `json:"template" yaml:"template"`
}

// DevServerSettings holds dev-server parameters backed by DEVSERVER_* variables
type DevServerSettings struct {
	Public string `json:"public" yaml:"public"`
	Host   string `json:"host" yaml:"host"`
	Poll   bool   `json:"poll" yaml:"poll"`
	Port   int    `json:"port" yaml:"port"`
	HTTPS  bool   `json:"https" yaml:"https"`
}

// ManifestSettings configures asset manifests
type ManifestSettings struct {
	BasePath string `json:"basePath" yaml:"basePath"`
}

// WorkboxSettings configures the generated service worker
type WorkboxSettings struct {
	SwDest                   string             `json:"swDest" yaml:"swDest"`
	PrecacheManifestFilename string             `json:"precacheManifestFilename" yaml:"precacheManifestFilename"`
	ImportScripts            []string           `json:"importScripts,omitempty" yaml:"importScripts,omitempty"`
	Exclude                  []string           `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	GlobDirectory            string             `json:"globDirectory" yaml:"globDirectory"`
	GlobPatterns             []string           `json:"globPatterns,omitempty" yaml:"globPatterns,omitempty"`
	OfflineGoogleAnalytics   bool               `json:"offlineGoogleAnalytics" yaml:"offlineGoogleAnalytics"`
	RuntimeCaching           []RuntimeCacheRule `json:"runtimeCaching,omitempty" yaml:"runtimeCaching,omitempty"`
}

// ImageSettings tunes image stage selection
type ImageSettings struct {
	OptimizeLegacy bool `json:"optimizeLegacy" yaml:"optimizeLegacy"`
}

// ExecutorSettings configures the external build executor
type ExecutorSettings struct {
	Command     string            `json:"command,omitempty" yaml:"command,omitempty"`
	Critical    string            `json:"critical,omitempty" yaml:"critical,omitempty"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string   `json:"file" yaml:"file"`
	Level LogLevel `json:"level" yaml:"level"`
}

// NotificationSettings represents notification preferences
type NotificationSettings struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// IsEnabled reports whether notifications are on (default true)
func (n *NotificationSettings) IsEnabled() bool {
	return n == nil || n.Enabled == nil || *n.Enabled
}
