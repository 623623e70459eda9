package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/syncengine"
)

// NewCloneCommand materialises a fresh workspace from a remote: the
// workspace's own repository first, then every resource with a remote.
// Resources with no remote (plain local-files) are left empty for the
// caller to populate.
func NewCloneCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [target]",
		Short: "Clone a dwc workspace and every resource that has a remote",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]

			target := defaultCloneTarget(url)
			if len(args) == 2 {
				target = args[1]
			}

			app.announce("clone workspace repository %s into %s", url, target)

			if _, err := syncengine.Clone(cmd.Context(), url, target, app.Identity); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cloned into %s\n", target)

			return nil
		},
	}
}

func defaultCloneTarget(url string) string {
	base := filepath.Base(url)
	return strings.TrimSuffix(base, ".git")
}
