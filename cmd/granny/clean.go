package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spachava753/granny/internal/workspace"
)

func newCleanCmd(globals *globalOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove workspaces left behind by killed runs",
		Long: `clean deletes granny-* directories in the workspace base directory whose
last modification is older than --older-than. A running promotion refreshes its
workspace after each stage but not during one, so --older-than must exceed the
longest single stage, usually the build.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadToolConfig(globals, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			manager := workspace.NewManager(cfg.Workspace.BaseDir)
			report, err := manager.Cleanup(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale workspaces from %s (%d kept)\n",
				report.DeletedDirs, manager.BaseDir(), report.Kept)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "only remove workspaces idle for at least this long")
	return cmd
}
