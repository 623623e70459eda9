package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/diffutil"
	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/store"
	"github.com/dwspace/dwc/pkg/gitlib"
)

// NewDiffCommand compares two snapshots' resource states. Resources whose
// content hash is unchanged between the two snapshots are omitted; for
// managed-git and git-subdir resources (whose content is addressable by
// the commit hash recorded as each snapshot's token), --path additionally
// renders a line-level diff of one file.
func NewDiffCommand(app *App) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "diff <ref> <ref>",
		Short: "Compare resource states between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, app, args[0], args[1], path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "resource:subpath to render a line-level diff for")

	return cmd
}

func runDiff(cmd *cobra.Command, app *App, refA, refB, path string) error {
	s := app.Store()

	history, err := s.History()
	if err != nil {
		return err
	}

	hashA, err := store.ResolveRef(history, hostnameOrEmpty(), refA)
	if err != nil {
		return errs.New(errs.ClassUser, "", "diff", err)
	}

	hashB, err := store.ResolveRef(history, hostnameOrEmpty(), refB)
	if err != nil {
		return errs.New(errs.ClassUser, "", "diff", err)
	}

	manifestA, err := s.ReadManifest(hashA)
	if err != nil {
		return err
	}

	manifestB, err := s.ReadManifest(hashB)
	if err != nil {
		return err
	}

	statesA := byName(manifestA.Resources)
	statesB := byName(manifestB.Resources)

	catalogue, err := s.Catalogue()
	if err != nil {
		return err
	}

	byResourceName := make(map[string]model.Resource, len(catalogue))
	for _, r := range catalogue {
		byResourceName[r.Name] = r
	}

	changed := 0

	for name, stateA := range statesA {
		stateB, ok := statesB[name]
		if !ok || stateA.Hash == stateB.Hash {
			continue
		}

		changed++

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", name, shortHash12(stateA.Hash), shortHash12(stateB.Hash))
	}

	if changed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no resources changed")
	}

	if path == "" {
		return nil
	}

	resourceName, subpath, ok := strings.Cut(path, ":")
	if !ok {
		return errs.New(errs.ClassUser, "", "diff", fmt.Errorf("--path must be resource:subpath, got %q", path))
	}

	res, ok := byResourceName[resourceName]
	if !ok {
		return errs.New(errs.ClassUser, resourceName, "diff", fmt.Errorf("unknown resource %q", resourceName))
	}

	return renderPathDiff(cmd, s, res, subpath, statesA[resourceName], statesB[resourceName])
}

func renderPathDiff(cmd *cobra.Command, s *store.Store, res model.Resource, subpath string, stateA, stateB model.ResourceState) error {
	var repoPath string

	switch res.Backend {
	case model.BackendManagedGit:
		locals, err := s.LocalParamsFor()
		if err != nil {
			return err
		}

		repoPath = locals[res.Name].Path

	case model.BackendGitSubdir:
		repoPath = s.Root()
		subpath = strings.Trim(res.SharedParams["subpath"], "/") + "/" + subpath

	default:
		return errs.New(errs.ClassUser, res.Name, "diff",
			fmt.Errorf("--path diffs are only supported for managed-git and git-subdir resources"))
	}

	repo, err := gitrepo.Open(repoPath)
	if err != nil {
		return errs.New(errs.ClassBackend, res.Name, "diff", err)
	}
	defer repo.Free()

	contentA, err := repo.ReadFileAt(gitlib.NewHash(stateA.Token), subpath)
	if err != nil {
		return errs.New(errs.ClassBackend, res.Name, "diff", err)
	}

	contentB, err := repo.ReadFileAt(gitlib.NewHash(stateB.Token), subpath)
	if err != nil {
		return errs.New(errs.ClassBackend, res.Name, "diff", err)
	}

	result := diffutil.Text(contentA, contentB)

	if result.Binary {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: binary files differ (equal=%v)\n", subpath, result.Equal)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), result.Unified)

	return nil
}

func byName(states []model.ResourceState) map[string]model.ResourceState {
	out := make(map[string]model.ResourceState, len(states))
	for _, s := range states {
		out[s.Name] = s
	}

	return out
}

func shortHash12(h string) string {
	if len(h) <= 12 {
		return h
	}

	return h[:12]
}
