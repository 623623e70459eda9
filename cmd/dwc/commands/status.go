package commands

import (
	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/report"
	"github.com/dwspace/dwc/internal/store"
)

// NewStatusCommand prints one row per catalogue resource, annotated with
// its content hash as of the most recent snapshot. It is the same view as
// "dwc report status", exposed at the top level since it's the one report
// most workflows check after every command.
func NewStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every resource and its most recent snapshot hash",
		Args:  cobra.NoArgs,
		RunE:  statusRunE(app),
	}
}

func statusRunE(app *App) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		s := app.Store()

		catalogue, err := s.Catalogue()
		if err != nil {
			return err
		}

		states, err := latestResourceStates(s)
		if err != nil {
			return err
		}

		report.Status(cmd.OutOrStdout(), catalogue, states)

		return nil
	}
}

func latestResourceStates(s *store.Store) ([]model.ResourceState, error) {
	history, err := s.History()
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		return nil, nil
	}

	manifest, err := s.ReadManifest(history[0].Hash)
	if err != nil {
		return nil, err
	}

	return manifest.Resources, nil
}
