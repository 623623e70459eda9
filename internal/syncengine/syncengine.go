// Package syncengine implements push/pull/clone: synchronising every
// resource's remote with its local state, and materialising a fresh clone
// of an entire workspace.
package syncengine

import (
	"context"
	"fmt"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/resource"
	"github.com/dwspace/dwc/internal/store"
)

// Engine runs sync operations against one workspace.
type Engine struct {
	store    *store.Store
	identity registry.Identity
}

// New returns an Engine for the given store.
func New(s *store.Store, identity registry.Identity) *Engine {
	return &Engine{store: s, identity: identity}
}

// Push pushes the workspace's own catalogue/history/manifest repository
// first, then every resource that implements Syncer, in catalogue order.
// skip names resources to leave untouched; a nil or empty skip pushes
// everything.
func (e *Engine) Push(ctx context.Context, skip map[string]bool) error {
	repo, err := gitrepo.Open(e.store.Root())
	if err != nil {
		return errs.New(errs.ClassBackend, "", "push", err)
	}
	defer repo.Free()

	ahead, err := repo.RemoteAhead("origin", "main")
	if err != nil {
		return errs.New(errs.ClassBackend, "", "push", err)
	}

	if ahead {
		return errs.New(errs.ClassPrecondition, "", "push", errs.ErrRemoteAhead)
	}

	if err := repo.Push("origin", "refs/heads/main:refs/heads/main"); err != nil {
		return errs.New(errs.ClassBackend, "", "push", err)
	}

	return e.forEachSyncer(ctx, skip, func(a resource.Syncer) error { return a.Push(ctx) })
}

// Pull pulls every resource's Syncer first, then the workspace's own
// repository last, and clears the working lineage set (it no longer
// corresponds to any resource state now that everything moved).
func (e *Engine) Pull(ctx context.Context) error {
	if err := e.forEachSyncer(ctx, nil, func(a resource.Syncer) error { return a.Pull(ctx) }); err != nil {
		return err
	}

	repo, err := gitrepo.Open(e.store.Root())
	if err != nil {
		return errs.New(errs.ClassBackend, "", "pull", err)
	}
	defer repo.Free()

	if err := repo.Fetch("origin"); err != nil {
		return errs.New(errs.ClassBackend, "", "pull", err)
	}

	return store.ClearLineage(e.store.CurrentLineageDir(), store.LineageDoc{
		Certificates: map[string]model.Certificate{},
	})
}

// Clone clones the workspace's own repository into target, opens the
// resulting store, and re-materialises every resource that implements
// Syncer via its Clone method. Resources with no remote (e.g. plain
// local-files) are left for the caller to populate by hand.
func Clone(ctx context.Context, url, target string, identity registry.Identity) (*store.Store, error) {
	repo, err := gitrepo.Clone(url, target)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, "", "clone", err)
	}
	defer repo.Free()

	s := store.Open(target)

	catalogue, err := s.Catalogue()
	if err != nil {
		return nil, err
	}

	locals, err := s.LocalParamsFor()
	if err != nil {
		return nil, err
	}

	for _, res := range catalogue {
		local, ok := locals[res.Name]
		if !ok {
			return nil, errs.New(errs.ClassUser, res.Name, "clone",
				fmt.Errorf("no local path configured for resource %q on this clone", res.Name))
		}

		a, buildErr := registry.Build(s, res, local, identity)
		if buildErr != nil {
			return nil, buildErr
		}

		syncer, ok := a.(resource.Syncer)
		if !ok {
			continue
		}

		if err := syncer.Clone(ctx, local.Path); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (e *Engine) forEachSyncer(ctx context.Context, skip map[string]bool, fn func(resource.Syncer) error) error {
	catalogue, err := e.store.Catalogue()
	if err != nil {
		return err
	}

	locals, err := e.store.LocalParamsFor()
	if err != nil {
		return err
	}

	for _, res := range catalogue {
		if skip[res.Name] {
			continue
		}

		a, buildErr := registry.Build(e.store, res, locals[res.Name], e.identity)
		if buildErr != nil {
			return buildErr
		}

		syncer, ok := a.(resource.Syncer)
		if !ok {
			continue
		}

		if err := fn(syncer); err != nil {
			return err
		}
	}

	return nil
}
