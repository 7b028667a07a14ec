package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/loopcanvas/pkg/agents"
	"github.com/vanderheijden86/loopcanvas/pkg/config"
	"github.com/vanderheijden86/loopcanvas/pkg/loader"
)

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .loopcanvas project with the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			withAgents, _ := cmd.Flags().GetBool("agents")
			return a.runInit(cmd, dir, force, withAgents)
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config")
	cmd.Flags().Bool("agents", false, "Add lc usage notes to the project's AGENTS.md")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, dir string, force, withAgents bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	path := config.Path(abs)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	if err := loader.EnsureStateInGitignore(abs); err != nil {
		a.logger.Warn("could not update .gitignore", "dir", abs, "error", err)
	}
	a.logger.Debug("project initialized", "config", path)
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)

	if withAgents {
		agentFile, changed, err := agents.Ensure(abs)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", agentFile)
		}
	}
	return nil
}
