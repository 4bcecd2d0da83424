package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dualpack/dualpack/internal/critical"
	"github.com/dualpack/dualpack/internal/layers"
	"github.com/dualpack/dualpack/internal/manifest"
	"github.com/dualpack/dualpack/internal/metrics"
	"github.com/dualpack/dualpack/pkg/config"
	"github.com/dualpack/dualpack/pkg/logger"
	"github.com/dualpack/dualpack/pkg/types"
	"github.com/dualpack/dualpack/pkg/validation"
)

func (c *CLI) newPlanCmd() *cobra.Command {
	var all bool
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the merged build specifications",
		Long: `Compose the legacy and modern specifications of the selected environment
and print them. With --all, both environments are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd.Context(), all, format)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "print both environments")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json, yaml)")
	return cmd
}

func (c *CLI) runPlan(ctx context.Context, all bool, format string) error {
	settings, root, err := c.loadSettings()
	if err != nil {
		return err
	}
	composer := c.newComposer(settings, root)

	if all {
		plans, err := composer.ComposeAll(ctx)
		if err != nil {
			return err
		}
		return encode(c.output, plans, format)
	}

	env, err := c.environment()
	if err != nil {
		return err
	}
	plan, err := composer.Compose(ctx, env)
	if err != nil {
		return err
	}
	return encode(c.output, plan, format)
}

func encode(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q (json, yaml)", format)
	}
}

func (c *CLI) newManifestCmd() *cobra.Command {
	var patterns []string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write asset manifests for the build output",
		Long: `Scan the output directory and write manifest-legacy.json and manifest.json,
mapping logical asset names to fingerprinted files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, root, err := c.loadSettings()
			if err != nil {
				return err
			}
			written, err := c.writeManifests(settings, root, patterns)
			if err != nil {
				return err
			}
			for _, path := range written {
				c.console.Success(fmt.Sprintf("Wrote %s", path))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "glob patterns to scan, relative to the output directory")
	return cmd
}

func (c *CLI) writeManifests(settings *types.Settings, root string, patterns []string) ([]string, error) {
	dist := layers.DistPath(settings, root)
	files, err := manifest.ScanOutput(dist, patterns)
	if err != nil {
		return nil, err
	}

	byTarget := manifest.PartitionByTarget(files)
	gen := manifest.NewGenerator(settings.Manifest.BasePath, settings.URLs.PublicPath)

	var written []string
	for _, target := range types.AllTargets() {
		m := gen.Generate(byTarget[target], target)
		path, err := m.Write(dist)
		if err != nil {
			return written, err
		}
		c.logger.WithTarget(string(target)).Info("Wrote manifest",
			logger.WithField("file", path),
			logger.WithField("entries", m.Len()))
		written = append(written, path)
	}
	return written, nil
}

func (c *CLI) newCriticalCmd() *cobra.Command {
	var planOnly bool

	cmd := &cobra.Command{
		Use:   "critical",
		Short: "Extract critical styles for the configured pages",
		Long: `Plan one critical style job per configured page and run them through the
executor.critical command. Failed pages are reported; other pages still run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, root, err := c.loadSettings()
			if err != nil {
				return err
			}
			jobs := critical.PlanCriticalResources(settings)
			if planOnly {
				return encode(c.output, jobs, "json")
			}
			return c.runCritical(cmd.Context(), settings, root, jobs)
		},
	}

	cmd.Flags().BoolVar(&planOnly, "plan-only", false, "print the jobs without running them")
	return cmd
}

func (c *CLI) runCritical(ctx context.Context, settings *types.Settings, root string, jobs []types.CriticalResourceJob) error {
	if len(jobs) == 0 {
		c.console.Info("No pages configured for critical styles")
		return nil
	}

	rec := c.recorder()
	extractor := critical.NewCommandExtractor(settings.Executor.Critical, root, settings.Executor.Environment)
	runner := critical.NewRunner(extractor,
		critical.WithConcurrency(c.config.CriticalConcurrency),
		critical.WithLogger(c.logger),
		critical.WithResultHook(func(res critical.JobResult) {
			var err error
			if res.Err != nil {
				err = res.Err
			}
			rec.ObserveCriticalJob(res.Job.Page.TemplateName, res.Duration, metrics.OutcomeOf(err, ctx.Err() != nil))
		}))

	results := runner.Run(ctx, jobs)
	failed := critical.Failures(results)
	c.newNotifier(settings).NotifyCriticalFailures(len(failed), len(results))

	for _, res := range results {
		if res.OK() {
			c.console.Success(fmt.Sprintf("%s → %s", res.Job.Page.TemplateName, res.Job.Destination))
		} else {
			c.console.Error(res.Err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d critical style jobs failed: %w", len(failed), len(results), critical.Errors(results))
	}
	return nil
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, root, err := c.loadSettings()
			if err != nil {
				return err
			}

			result := config.NewManager().Validate(settings, root)
			for _, finding := range result.Errors {
				msg := fmt.Sprintf("%s.%s: %s", finding.Section, finding.Field, finding.Message)
				switch finding.Level {
				case validation.ValidationLevelError:
					c.console.Error(msg)
				case validation.ValidationLevelWarning:
					c.console.Warn(msg)
				default:
					c.console.Info(msg)
				}
			}
			if err := result.Err(); err != nil {
				return err
			}
			c.console.Success("Settings are valid")
			return nil
		},
	}
}

func (c *CLI) newCleanCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build output",
		Long:  `Remove files matching paths.dist.clean under paths.dist.base.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, root, err := c.loadSettings()
			if err != nil {
				return err
			}
			removed, err := cleanOutput(layers.DistPath(settings, root), settings.Paths.Dist.Clean, dryRun)
			if err != nil {
				return err
			}
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, path := range removed {
				c.console.Info(fmt.Sprintf("%s %s", verb, path))
			}
			c.console.Success(fmt.Sprintf("%s %d paths", verb, len(removed)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list what would be removed")
	return cmd
}

// cleanOutput removes everything under dist matching patterns. Matches
// outside dist are refused.
func cleanOutput(dist string, patterns []string, dryRun bool) ([]string, error) {
	var removed []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(filepath.Join(dist, pattern))
		if err != nil {
			return removed, fmt.Errorf("invalid clean pattern %q: %w", pattern, err)
		}
		// Parents sort first; removing them takes the children along.
		sort.Strings(matches)
		for _, match := range matches {
			rel, err := filepath.Rel(dist, match)
			if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
				return removed, fmt.Errorf("refusing to remove %s outside %s", match, dist)
			}
			if seen[match] || coveredBy(match, removed) {
				continue
			}
			seen[match] = true
			if !dryRun {
				if err := os.RemoveAll(match); err != nil {
					return removed, fmt.Errorf("failed to remove %s: %w", match, err)
				}
			}
			removed = append(removed, match)
		}
	}
	return removed, nil
}

func coveredBy(path string, parents []string) bool {
	for _, p := range parents {
		if strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			version := c.config.Version
			if version == "" {
				version = "dev"
			}
			fmt.Fprintf(c.output, "📦 dualpack v%s\n", version)
		},
	}
}
