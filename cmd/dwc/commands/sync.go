package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/syncengine"
)

// NewPushCommand pushes the workspace repository and every syncable
// resource's remote. --skip names resources to leave untouched, for the
// case where one resource's remote is temporarily unreachable.
func NewPushCommand(app *App) *cobra.Command {
	var skip []string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the workspace and every resource to their remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(skip) > 0 {
				app.announce("skip resources: %v", skip)
			}

			app.announce("push workspace repository and every syncable resource")

			eng := syncengine.New(app.Store(), app.Identity)

			return eng.Push(cmd.Context(), toSkipSet(skip))
		},
	}

	cmd.Flags().StringArrayVar(&skip, "skip", nil, "resource name to leave unpushed (repeatable)")

	return cmd
}

func toSkipSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	return set
}

// NewPullCommand pulls every syncable resource, then the workspace
// repository, clearing the working lineage set since it no longer
// corresponds to any resource's current state.
func NewPullCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull every resource and the workspace from their remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.announce("pull every syncable resource, then the workspace repository")

			eng := syncengine.New(app.Store(), app.Identity)

			return eng.Pull(cmd.Context())
		},
	}
}

// NewPublishCommand points a previously local-only workspace at a remote
// for the first time: it adds the workspace repository's origin remote,
// then runs the same push every subsequent "dwc push" does. Unlike push,
// publish is expected to run against a repository with no prior origin, so
// it does not treat a missing remote as an error; an origin that already
// exists makes it fail instead of being repointed.
func NewPublishCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <url>",
		Short: "Point the workspace at a remote and push it there for the first time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]

			s := app.Store()

			repo, err := gitrepo.Open(s.Root())
			if err != nil {
				return errs.New(errs.ClassBackend, "", "publish", err)
			}
			defer repo.Free()

			app.announce("set origin remote to %s", url)

			if err := repo.AddRemote("origin", url); err != nil {
				return errs.New(errs.ClassBackend, "", "publish", err)
			}

			app.announce("push workspace repository and every syncable resource")

			eng := syncengine.New(s, app.Identity)
			if err := eng.Push(cmd.Context(), nil); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published to %s\n", url)

			return nil
		},
	}
}
