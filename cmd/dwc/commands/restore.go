package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/restoreengine"
)

// NewRestoreCommand moves every non-leave-set resource to the state
// recorded in a given snapshot. Results resources are always implicitly
// excluded by the engine.
func NewRestoreCommand(app *App) *cobra.Command {
	var (
		only          []string
		leave         []string
		noNewSnapshot bool
	)

	cmd := &cobra.Command{
		Use:   "restore <ref>",
		Short: "Restore resources to the state recorded in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.announce("restore to %s (only=%v leave=%v)", args[0], only, leave)

			eng := restoreengine.New(app.Store(), app.Identity)

			report, err := eng.Restore(cmd.Context(), restoreengine.Options{
				Ref:           args[0],
				Only:          toSkipSet(only),
				Leave:         toSkipSet(leave),
				NoNewSnapshot: noNewSnapshot,
			})
			if err != nil {
				return err
			}

			if report.AutoSnapshot != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "auto-snapshotted dirty state as %s\n", report.AutoSnapshot)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "restored: %v\n", report.Restored)

			for name, ferr := range report.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, ferr)
			}

			if len(report.Failed) > 0 {
				return fmt.Errorf("restore failed for %d resource(s)", len(report.Failed))
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVar(&only, "only", nil, "restore only this resource (repeatable)")
	cmd.Flags().StringArrayVar(&leave, "leave", nil, "leave this resource untouched (repeatable)")
	cmd.Flags().BoolVar(&noNewSnapshot, "no-new-snapshot", false, "fail instead of auto-snapshotting dirty non-leave resources")

	return cmd
}
