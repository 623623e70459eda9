package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/model"
)

type addFlags struct {
	name           string
	role           string
	readOnly       bool
	remoteURL      string
	direction      string
	mode           string
	tool           string
	bucket         string
	prefix         string
	region         string
	resultsExclude string
}

// NewAddCommand registers a new resource in the workspace catalogue and, for
// backends with an on-disk materialisation, prepares that materialisation
// (git init/clone, or a plain directory) so the resource is immediately
// usable by "dwc snapshot".
func NewAddCommand(app *App) *cobra.Command {
	f := &addFlags{}

	cmd := &cobra.Command{
		Use:   "add <backend> <path>",
		Short: "Add a resource to the workspace catalogue",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAdd(app, f, model.BackendKind(args[0]), args[1])
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "resource name (required)")
	cmd.Flags().StringVar(&f.role, "role", "", "resource role: source-data, intermediate-data, code, or results (required)")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "refuse restores/pushes that would mutate this resource")
	cmd.Flags().StringVar(&f.remoteURL, "remote-url", "", "remote URL (managed-git, external-sync)")
	cmd.Flags().StringVar(&f.direction, "direction", "", "sync direction: remote-master or local-master (external-sync)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "sync mode: copy or sync (external-sync)")
	cmd.Flags().StringVar(&f.tool, "tool", "rclone", "external sync tool binary name (external-sync)")
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "bucket name (object-store)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "key prefix, defaults to <path> (object-store)")
	cmd.Flags().StringVar(&f.region, "region", "", "bucket region (object-store)")
	cmd.Flags().StringVar(&f.resultsExclude, "results-exclude", "", "extra filename ResultsRotate leaves in place (results role)")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runAdd(app *App, f *addFlags, backend model.BackendKind, path string) error {
	s := app.Store()

	shared := map[string]string{}
	var localPath string

	switch backend {
	case model.BackendManagedGit:
		localPath = path
		shared["remote_url"] = f.remoteURL

		if err := materialiseGitDir(localPath, f.remoteURL); err != nil {
			return err
		}

	case model.BackendGitSubdir:
		shared["subpath"] = path
		localPath = filepath.Join(s.Root(), path)

		if err := os.MkdirAll(localPath, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", localPath, err)
		}

	case model.BackendLocalFiles:
		localPath = path
		if err := os.MkdirAll(localPath, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", localPath, err)
		}

	case model.BackendExternalSync:
		localPath = path
		shared["remote_url"] = f.remoteURL
		shared["direction"] = f.direction
		shared["mode"] = f.mode
		shared["tool"] = f.tool

		if err := os.MkdirAll(localPath, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", localPath, err)
		}

	case model.BackendObjectStore:
		if f.bucket == "" {
			return errs.New(errs.ClassUser, f.name, "add", fmt.Errorf("--bucket is required for object-store"))
		}

		prefix := f.prefix
		if prefix == "" {
			prefix = path
		}

		shared["bucket"] = f.bucket
		shared["prefix"] = prefix
		shared["region"] = f.region
		localPath = s.FileBackendDir(f.name)

	default:
		return errs.New(errs.ClassUser, f.name, "add", fmt.Errorf("unknown backend kind %q", backend))
	}

	if f.resultsExclude != "" {
		shared["results_exclude"] = f.resultsExclude
	}

	app.announce("register resource %q (%s/%s) at %s", f.name, f.role, backend, localPath)

	if err := s.MutateCatalogue(func(resources *[]model.Resource) error {
		*resources = append(*resources, model.Resource{
			Name:         f.name,
			Role:         model.Role(f.role),
			Backend:      backend,
			ReadOnly:     f.readOnly,
			SharedParams: shared,
		})

		return nil
	}); err != nil {
		return err
	}

	if err := s.SetLocalParams(f.name, model.LocalParams{Path: localPath}); err != nil {
		return err
	}

	return s.CheckInvariants()
}

func materialiseGitDir(path, remoteURL string) error {
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		return nil
	}

	if remoteURL != "" {
		repo, err := gitrepo.Clone(remoteURL, path)
		if err != nil {
			return err
		}
		defer repo.Free()

		return nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	repo, err := gitrepo.Init(path)
	if err != nil {
		return err
	}
	defer repo.Free()

	return nil
}
