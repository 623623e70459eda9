package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/snapshotengine"
)

// NewSnapshotCommand runs the five-phase snapshot pipeline: precheck every
// non-skipped resource, rotate results resources, freeze the working
// lineage, capture content, and commit a history entry.
func NewSnapshotCommand(app *App) *cobra.Command {
	var (
		message  string
		skip     []string
		forceTag bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot [tag]",
		Short: "Record a content-addressed snapshot of every resource",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := ""
			if len(args) == 1 {
				tag = args[0]
			}

			app.announce("snapshot every resource except %v", skip)

			eng := snapshotengine.New(app.Store(), app.Identity)

			result, err := eng.Snapshot(cmd.Context(), tag, message, toSkipSet(skip), forceTag)

			if !forceTag && tag != "" && errors.Is(err, errs.ErrTagExists) {
				if !app.confirm(fmt.Sprintf("tag %q already names a snapshot on this host; overwrite it?", tag)) {
					return err
				}

				result, err = eng.Snapshot(cmd.Context(), tag, message, toSkipSet(skip), true)
			}

			if err != nil {
				return err
			}

			status := "new"
			if result.Reused {
				status = "unchanged"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s (%s), history now %d entries\n", result.Hash, status, result.HistoryLen)

			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "snapshot message")
	cmd.Flags().StringArrayVar(&skip, "skip", nil, "resource name to leave out of this snapshot (repeatable)")
	cmd.Flags().BoolVar(&forceTag, "force-tag", false, "overwrite an existing tag on this host instead of refusing")

	return cmd
}
