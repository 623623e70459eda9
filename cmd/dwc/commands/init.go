package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/gitrepo"
)

// NewInitCommand creates a new dwc workspace: an empty resource catalogue
// plus the workspace's own backing git repository, which every "git-subdir"
// resource and the snapshot history commit into.
func NewInitCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialise a new dwc workspace in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := app.Store()

			app.announce("create %s", s.MetaDir())

			if err := s.Init(); err != nil {
				return err
			}

			app.announce("init git repository at %s", app.Workspace)

			repo, err := gitrepo.Init(app.Workspace)
			if err != nil {
				return err
			}
			defer repo.Free()

			if err := gitrepo.EnsureGitignore(app.Workspace,
				".dataworkspace/current_lineage/",
				".dataworkspace/file/",
				".dataworkspace/scratch/",
			); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialised dwc workspace in %s\n", app.Workspace)

			return nil
		},
	}
}
