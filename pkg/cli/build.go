package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dualpack/dualpack/internal/executor"
	"github.com/dualpack/dualpack/pkg/types"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var skipManifest, skipCritical bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compose and run the build of the selected environment",
		Long: `Compose both specifications, write the plan and run executor.command with
DUALPACK_PLAN pointing at it. Production builds then write the asset
manifests and extract critical styles.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), skipManifest, skipCritical)
		},
	}

	cmd.Flags().BoolVar(&skipManifest, "skip-manifest", false, "do not write asset manifests")
	cmd.Flags().BoolVar(&skipCritical, "skip-critical", false, "do not extract critical styles")
	return cmd
}

func (c *CLI) runBuild(ctx context.Context, skipManifest, skipCritical bool) error {
	start := time.Now()

	settings, root, err := c.loadSettings()
	if err != nil {
		return err
	}
	env, err := c.environment()
	if err != nil {
		return err
	}
	notify := c.newNotifier(settings)

	plan, err := c.newComposer(settings, root).Compose(ctx, env)
	if err != nil {
		notify.NotifyBuildFailure(string(env), err)
		return err
	}
	notify.NotifyPlanComposed(string(env), len(plan.Specs))

	exec := executor.NewCommandExecutor(settings.Executor.Command, root, settings.Executor.Environment,
		executor.WithLogger(c.logger),
		executor.WithRecorder(c.recorder()))
	if err := exec.Execute(ctx, plan); err != nil {
		notify.NotifyBuildFailure(string(env), err)
		return err
	}

	if env == types.EnvironmentProduction {
		if !skipManifest {
			written, err := c.writeManifests(settings, root, nil)
			if err != nil {
				notify.NotifyBuildFailure(string(env), err)
				return fmt.Errorf("failed to write manifests: %w", err)
			}
			for _, path := range written {
				c.console.Info(fmt.Sprintf("Wrote %s", path))
			}
		}
		if !skipCritical {
			// Critical failures are reported per page and do not fail the build.
			if err := c.runCritical(ctx, settings, root, plan.CriticalJobs); err != nil {
				c.console.Warn(err.Error())
			}
		}
	}

	duration := time.Since(start)
	notify.NotifyBuildSuccess(string(env), duration)
	c.console.Success(fmt.Sprintf("%s build finished in %s", env, duration.Round(time.Millisecond)))
	return nil
}
