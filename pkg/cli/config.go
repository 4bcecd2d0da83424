package cli

import (
	"github.com/dualpack/dualpack/internal/critical"
)

// Config holds all CLI configuration
type Config struct {
	ConfigFile          string
	ProjectRoot         string
	LogLevel            string
	LogFile             string
	Environment         string
	NoNotify            bool
	MetricsFile         string
	CriticalConcurrency int
	Version             string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot:         ".",
		LogLevel:            "info",
		Environment:         "development",
		CriticalConcurrency: critical.DefaultConcurrency,
	}
}
