package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/lineage"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/report"
	"github.com/dwspace/dwc/internal/store"
)

// NewReportCommand groups the read-only views over workspace state: the
// same resource table "status" shows, the snapshot history, the numeric
// metrics recorded against one snapshot, and the lineage DAG.
func NewReportCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render workspace reports: status, history, results, or lineage",
	}

	cmd.AddCommand(newReportStatusCommand(app))
	cmd.AddCommand(newReportHistoryCommand(app))
	cmd.AddCommand(newReportResultsCommand(app))
	cmd.AddCommand(newReportLineageCommand(app))

	return cmd
}

func newReportStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every resource and its most recent snapshot hash",
		Args:  cobra.NoArgs,
		RunE:  statusRunE(app),
	}
}

func newReportHistoryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the snapshot history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := app.Store().History()
			if err != nil {
				return err
			}

			report.History(cmd.OutOrStdout(), history)

			return nil
		},
	}
}

func newReportResultsCommand(app *App) *cobra.Command {
	var snapshotRef string

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the numeric metrics recorded against a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := resolveHistoryEntry(app.Store(), snapshotRef)
			if err != nil {
				return err
			}

			report.Metrics(cmd.OutOrStdout(), entry)

			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotRef, "snapshot", "", "snapshot ref (tag or hash prefix); defaults to the latest")

	return cmd
}

func newReportLineageCommand(app *App) *cobra.Command {
	var snapshotRef string

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Show the lineage DAG recorded at a snapshot, or the working set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := app.Store()

			dir := s.CurrentLineageDir()

			if snapshotRef != "" {
				history, err := s.History()
				if err != nil {
					return err
				}

				hash, err := store.ResolveRef(history, hostnameOrEmpty(), snapshotRef)
				if err != nil {
					return errs.New(errs.ClassUser, "", "report-lineage", err)
				}

				dir = s.SnapshotLineageDir(hash)
			}

			doc, err := store.ReadLineage(dir)
			if err != nil {
				return err
			}

			if err := lineage.CheckConsistency(doc); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			report.Lineage(cmd.OutOrStdout(), doc.Steps)

			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotRef, "snapshot", "", "snapshot ref (tag or hash prefix); defaults to the working lineage set")

	return cmd
}

func resolveHistoryEntry(s *store.Store, ref string) (model.HistoryEntry, error) {
	history, err := s.History()
	if err != nil {
		return model.HistoryEntry{}, err
	}

	if len(history) == 0 {
		return model.HistoryEntry{}, errs.New(errs.ClassUser, "", "report-results",
			fmt.Errorf("workspace has no snapshots yet"))
	}

	if ref == "" {
		return history[0], nil
	}

	hash, err := store.ResolveRef(history, hostnameOrEmpty(), ref)
	if err != nil {
		return model.HistoryEntry{}, errs.New(errs.ClassUser, "", "report-results", err)
	}

	for _, e := range history {
		if e.Hash == hash {
			return e, nil
		}
	}

	return model.HistoryEntry{}, errs.New(errs.ClassInconsistency, "", "report-results",
		fmt.Errorf("resolved hash %s has no history entry", hash))
}
