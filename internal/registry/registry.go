// Package registry builds a resource.Adaptor for each catalogue entry,
// wiring it to its local params and the workspace store's per-resource
// directories. It is the one place that knows how a model.Resource's
// shared/local params map onto a concrete backend constructor.
package registry

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/resource"
	"github.com/dwspace/dwc/internal/resource/externalsync"
	"github.com/dwspace/dwc/internal/resource/gitsubdir"
	"github.com/dwspace/dwc/internal/resource/localfiles"
	"github.com/dwspace/dwc/internal/resource/managedgit"
	"github.com/dwspace/dwc/internal/resource/objectstore"
	"github.com/dwspace/dwc/internal/store"
)

// Identity is the author identity managed-git and git-subdirectory resources
// commit as; dwc's own auto-commits use it too.
type Identity struct {
	Name  string
	Email string
}

// Build returns the adaptor for res, given its local params and the
// workspace store (used to derive per-resource blob/cache directories and,
// for git-subdir, the workspace's own repository path).
func Build(s *store.Store, res model.Resource, local model.LocalParams, identity Identity) (resource.Adaptor, error) {
	var a resource.Adaptor

	switch res.Backend {
	case model.BackendManagedGit:
		a = managedgit.New(res.Name, local.Path, res.SharedParams["remote_url"], identity.Name, identity.Email)

	case model.BackendGitSubdir:
		a = gitsubdir.New(res.Name, s.Root(), res.SharedParams["subpath"])

	case model.BackendLocalFiles:
		lf := localfiles.New(res.Name, local.Path, s.FileBackendDir(res.Name))
		if res.Role == model.RoleResults {
			lf.SetResultsExclude(excludeFromParams(res.SharedParams))
		}

		a = lf

	case model.BackendExternalSync:
		direction := externalsync.Direction(res.SharedParams["direction"])
		if direction == "" {
			direction = externalsync.DirectionRemoteMaster
		}

		mode := externalsync.Mode(res.SharedParams["mode"])
		if mode == "" {
			mode = externalsync.ModeSync
		}

		es := externalsync.New(res.Name, local.Path, s.FileBackendDir(res.Name),
			res.SharedParams["remote_url"], direction, mode, res.SharedParams["tool"])
		if res.Role == model.RoleResults {
			es.SetResultsExclude(excludeFromParams(res.SharedParams))
		}

		a = es

	case model.BackendObjectStore:
		client, err := s3Client(res.SharedParams["region"])
		if err != nil {
			return nil, errs.New(errs.ClassBackend, res.Name, "registry-build", err)
		}

		a = objectstore.New(res.Name, res.SharedParams["bucket"], res.SharedParams["prefix"], client, s.FileBackendDir(res.Name))

	default:
		return nil, errs.New(errs.ClassUser, res.Name, "registry-build",
			fmt.Errorf("unknown backend kind %q", res.Backend))
	}

	if ro, ok := a.(resource.ReadOnlyAware); ok {
		ro.SetReadOnly(res.ReadOnly)
	}

	return a, nil
}

func excludeFromParams(params map[string]string) func(string) bool {
	names := map[string]bool{"README.md": true, "README": true}

	if extra := params["results_exclude"]; extra != "" {
		names[extra] = true
	}

	return func(relpath string) bool { return names[relpath] }
}

func s3Client(region string) (*s3.S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return s3.New(sess), nil
}
