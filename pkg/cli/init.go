package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dualpack/dualpack/pkg/config"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	var format string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(format, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")
	cmd.Flags().StringVar(&format, "format", "yaml", "settings format (yaml, json)")
	return cmd
}

func (c *CLI) runInit(format string, force bool) error {
	root, err := c.projectRoot()
	if err != nil {
		return err
	}

	var name string
	switch format {
	case "yaml", "yml":
		name = "dualpack.settings.yaml"
	case "json":
		name = "dualpack.settings.json"
	default:
		return fmt.Errorf("unknown format %q (yaml, json)", format)
	}

	if existing, err := config.FindSettingsFile(root); err == nil && !force {
		c.console.Warn(fmt.Sprintf("Settings already exist: %s", existing))
		c.console.Info("Use --force to overwrite")
		return nil
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create project root: %w", err)
	}

	path := filepath.Join(root, name)
	if err := config.WriteSettings(path, config.DefaultSettings(filepath.Base(root))); err != nil {
		return err
	}

	c.console.Success(fmt.Sprintf("Created %s", path))
	c.console.Info("Next steps:")
	c.console.Info("  1. Adjust entries, paths and criticalCss.pages")
	c.console.Info("  2. Set executor.command to your bundler invocation")
	c.console.Info("  3. Run 'dualpack plan' to inspect the composed specifications")
	return nil
}
