// Package cli provides the command-line interface for dualpack
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dualpack/dualpack/internal/compose"
	"github.com/dualpack/dualpack/internal/metrics"
	"github.com/dualpack/dualpack/pkg/config"
	pcontext "github.com/dualpack/dualpack/pkg/context"
	"github.com/dualpack/dualpack/pkg/logger"
	"github.com/dualpack/dualpack/pkg/notifier"
	"github.com/dualpack/dualpack/pkg/types"
)

// CLI holds the command tree and everything commands share
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	v        *viper.Viper
	logger   logger.Logger
	console  *logger.ConsoleLogger
	metrics  *metrics.PrometheusRecorder
	run      context.Context
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := &CLI{
		config:   cfg,
		v:        viper.New(),
		logger:   logger.NewNopLogger(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}
	c.console = logger.NewConsoleLogger(c.output, c.errorOut)
	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.console = logger.NewConsoleLogger(output, errorOut)
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support. Metrics are written
// even when the command fails.
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	err := c.rootCmd.ExecuteContext(ctx)
	if c.run != nil {
		c.logger.Debug("Command finished", logger.WithField("elapsed", pcontext.Elapsed(c.run)))
	}
	if c.metrics != nil && c.config.MetricsFile != "" {
		if werr := c.metrics.WriteTextfile(c.config.MetricsFile); werr != nil {
			c.logger.Warn("Failed to write metrics", logger.WithError(werr))
		}
	}
	return err
}

// Execute runs the dualpack command line with os.Args
func Execute(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).Execute(os.Args[1:])
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "dualpack",
		Short: "Compose legacy and modern front-end builds",
		Long: `📦 dualpack composes the legacy and modern build specifications of a web
front-end for development and production, hands them to the external build
tool and generates manifests and critical styles around the build.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("📦 dualpack v{{.Version}}\n")

	c.rootCmd.AddCommand(
		c.newPlanCmd(),
		c.newBuildCmd(),
		c.newManifestCmd(),
		c.newCriticalCmd(),
		c.newValidateCmd(),
		c.newCleanCmd(),
		c.newWatchCmd(),
		c.newInitCmd(),
		c.newVersionCmd(),
	)
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "settings file (default: dualpack.settings.yaml|yml|json in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", c.config.ProjectRoot, "project root directory")
	flags.StringVar(&c.config.LogLevel, "log-level", c.config.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also append log lines to this file")
	flags.StringVarP(&c.config.Environment, "env", "e", c.config.Environment, "build environment (development, production)")
	flags.BoolVar(&c.config.NoNotify, "no-notify", false, "disable desktop notifications")
	flags.StringVar(&c.config.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	flags.IntVar(&c.config.CriticalConcurrency, "critical-concurrency", c.config.CriticalConcurrency, "critical style jobs run at once")

	for _, name := range []string{"env", "log-level", "no-notify", "metrics-file", "critical-concurrency"} {
		_ = c.v.BindPFlag(name, flags.Lookup(name))
	}
}

// initializeConfig resolves DUALPACK_* environment defaults for flags
// that were not given on the command line.
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.v.SetEnvPrefix("DUALPACK")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	c.config.Environment = c.v.GetString("env")
	c.config.LogLevel = c.v.GetString("log-level")
	c.config.NoNotify = c.v.GetBool("no-notify")
	c.config.MetricsFile = c.v.GetString("metrics-file")
	c.config.CriticalConcurrency = c.v.GetInt("critical-concurrency")

	c.run = pcontext.NewRun(cmd.Context(), cmd.Name(), c.config.Environment)
	cmd.SetContext(c.run)

	if c.config.LogFile != "" {
		c.logger = logger.CreateLogger(c.config.LogFile, c.config.LogLevel)
	} else {
		c.logger = logger.CreateLoggerWithOutput(c.config.LogLevel, c.errorOut)
	}
	c.logger = logger.WithContext(c.run, c.logger)

	if c.config.MetricsFile != "" {
		c.metrics = metrics.NewPrometheusRecorder(nil)
	}
	return nil
}

func (c *CLI) projectRoot() (string, error) {
	root, err := filepath.Abs(c.config.ProjectRoot)
	if err != nil {
		return "", fmt.Errorf("invalid project root: %w", err)
	}
	return root, nil
}

// loadSettings loads .env, then the settings file, and returns them with
// the absolute project root
func (c *CLI) loadSettings() (*types.Settings, string, error) {
	root, err := c.projectRoot()
	if err != nil {
		return nil, "", err
	}

	if err := config.LoadDotEnv(filepath.Join(root, ".env")); err != nil {
		return nil, "", err
	}

	path := c.config.ConfigFile
	if path == "" {
		if path, err = config.FindSettingsFile(root); err != nil {
			return nil, "", err
		}
	}

	settings, err := config.NewManager().LoadSettings(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load settings: %w", err)
	}
	c.logger.Debug("Loaded settings", logger.WithField("file", path))

	if c.config.LogFile == "" && settings.Logging != nil && settings.Logging.File != "" {
		logFile := settings.Logging.File
		if !filepath.IsAbs(logFile) {
			logFile = filepath.Join(root, logFile)
		}
		c.logger = logger.WithContext(c.run, logger.CreateLogger(logFile, c.config.LogLevel))
	}
	return settings, root, nil
}

func (c *CLI) settingsPath(root string) string {
	if c.config.ConfigFile != "" {
		return c.config.ConfigFile
	}
	path, err := config.FindSettingsFile(root)
	if err != nil {
		return ""
	}
	return path
}

func (c *CLI) environment() (types.Environment, error) {
	return types.ParseEnvironment(c.config.Environment)
}

func (c *CLI) recorder() metrics.Recorder {
	if c.metrics == nil {
		return metrics.NoopRecorder{}
	}
	return c.metrics
}

func (c *CLI) newComposer(settings *types.Settings, root string) *compose.Composer {
	return compose.New(settings, root,
		compose.WithLogger(c.logger),
		compose.WithRecorder(c.recorder()))
}

func (c *CLI) newNotifier(settings *types.Settings) *notifier.BuildNotifier {
	cfg := notifier.Config{
		Enabled: !c.config.NoNotify && settings.Notify.IsEnabled(),
		Title:   settings.Name,
	}
	if settings.Notify != nil {
		cfg.SuccessSound = settings.Notify.SuccessSound
		cfg.FailureSound = settings.Notify.FailureSound
	}
	return notifier.New(cfg, c.logger)
}
