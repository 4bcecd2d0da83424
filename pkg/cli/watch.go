package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dualpack/dualpack/internal/executor"
	"github.com/dualpack/dualpack/internal/watcher"
	"github.com/dualpack/dualpack/pkg/config"
	"github.com/dualpack/dualpack/pkg/logger"
	"github.com/dualpack/dualpack/pkg/types"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var reloadURL string
	var patterns []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch templates and reload the dev server",
		Long: `Write the development plan, then watch paths.templates. Every settled
change is posted to --reload-url as a content-changed message, or logged when
no URL is given. Editing the settings file recomposes the development plan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.runWatch(ctx, reloadURL, patterns)
		},
	}

	cmd.Flags().StringVar(&reloadURL, "reload-url", "", "dev server endpoint receiving content-changed posts")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "only reload for templates matching these globs")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, reloadURL string, patterns []string) error {
	settings, root, err := c.loadSettings()
	if err != nil {
		return err
	}
	if settings.Paths.Templates == "" {
		return fmt.Errorf("paths.templates is not set")
	}

	if err := c.writeDevPlan(ctx, settings, root); err != nil {
		return err
	}

	if path := c.settingsPath(root); path != "" {
		reload := config.NewReloadManager(path, c.logger)
		reload.OnReload(func(s *types.Settings, err error) {
			if err != nil {
				return
			}
			if err := c.writeDevPlan(ctx, s, root); err != nil {
				c.logger.Error("Failed to recompose development plan", logger.WithError(err))
			}
		})
		if err := reload.Start(); err != nil {
			c.logger.Warn("Settings will not be reloaded", logger.WithError(err))
		} else {
			defer reload.Stop()
		}
	}

	var reloader watcher.Reloader = watcher.LogReloader{Log: c.logger}
	if reloadURL != "" {
		reloader = watcher.NewHTTPReloader(reloadURL, c.logger)
	}

	w, err := watcher.New(reloader, c.logger, watcher.WithPatterns(patterns...))
	if err != nil {
		return err
	}

	templates := settings.Paths.Templates
	if !filepath.IsAbs(templates) {
		templates = filepath.Join(root, templates)
	}
	c.console.Info(fmt.Sprintf("Watching %s (Ctrl+C to stop)", templates))
	return w.Run(ctx, templates)
}

func (c *CLI) writeDevPlan(ctx context.Context, settings *types.Settings, root string) error {
	plan, err := c.newComposer(settings, root).Compose(ctx, types.EnvironmentDevelopment)
	if err != nil {
		return err
	}
	path, err := executor.WritePlan(root, plan)
	if err != nil {
		return err
	}
	c.logger.Info("Wrote development plan", logger.WithField("file", path), logger.WithField("plan", plan.ID))
	return nil
}
