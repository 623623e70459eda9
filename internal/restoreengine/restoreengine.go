// Package restoreengine implements the restore operation: moving every
// non-leave-set resource to the state recorded in a given snapshot, with
// results resources always implicitly excluded.
package restoreengine

import (
	"context"
	"fmt"
	"os"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/snapshotengine"
	"github.com/dwspace/dwc/internal/store"
)

// Engine runs restore operations against one workspace.
type Engine struct {
	store    *store.Store
	identity registry.Identity
}

// New returns an Engine for the given store.
func New(s *store.Store, identity registry.Identity) *Engine {
	return &Engine{store: s, identity: identity}
}

// Options configures one restore call. Only and Leave name resources by
// name; at most one of them may be non-empty.
type Options struct {
	Ref           string
	Only          map[string]bool
	Leave         map[string]bool
	NoNewSnapshot bool
}

// Report summarises one restore run: which resources were actually
// restored, and per-resource errors for backends that failed (restore
// continues past a single backend's failure since backends are
// heterogeneous and have no shared rollback).
type Report struct {
	AutoSnapshot string // hash of the auto-snapshot taken before restoring, if any
	Restored     []string
	Failed       map[string]error
}

// Restore resolves opts.Ref to a snapshot, validates the only/leave
// selection, auto-snapshots dirty non-leave resources unless
// opts.NoNewSnapshot is set, and then restores every selected resource in
// catalogue order.
func (e *Engine) Restore(ctx context.Context, opts Options) (Report, error) {
	if len(opts.Only) > 0 && len(opts.Leave) > 0 {
		return Report{}, errs.New(errs.ClassUser, "", "restore", errs.ErrAmbiguousSelection)
	}

	history, err := e.store.History()
	if err != nil {
		return Report{}, err
	}

	hostname, hostErr := currentHostname()
	if hostErr != nil {
		return Report{}, hostErr
	}

	hash, err := store.ResolveRef(history, hostname, opts.Ref)
	if err != nil {
		return Report{}, errs.New(errs.ClassUser, "", "restore", err)
	}

	manifest, err := e.store.ReadManifest(hash)
	if err != nil {
		return Report{}, errs.New(errs.ClassUser, "", "restore", err)
	}

	catalogue, err := e.store.Catalogue()
	if err != nil {
		return Report{}, err
	}

	locals, err := e.store.LocalParamsFor()
	if err != nil {
		return Report{}, err
	}

	byName := make(map[string]model.Resource, len(catalogue))
	for _, r := range catalogue {
		byName[r.Name] = r
	}

	selected := make([]model.ResourceState, 0, len(manifest.Resources))

	for _, st := range manifest.Resources {
		res, ok := byName[st.Name]
		if !ok {
			continue
		}

		if res.Role == model.RoleResults {
			if opts.Only[st.Name] {
				return Report{}, errs.New(errs.ClassUser, st.Name, "restore",
					fmt.Errorf("results resources are always left in place, cannot be named in --only"))
			}

			continue
		}

		if len(opts.Only) > 0 && !opts.Only[st.Name] {
			continue
		}

		if opts.Leave[st.Name] {
			continue
		}

		selected = append(selected, st)
	}

	report := Report{Failed: map[string]error{}}

	if !opts.NoNewSnapshot {
		autoHash, snapErr := e.autoSnapshotIfDirty(ctx, selected, byName, locals)
		if snapErr != nil {
			return Report{}, snapErr
		}

		report.AutoSnapshot = autoHash
	}

	for _, st := range selected {
		res := byName[st.Name]

		a, buildErr := registry.Build(e.store, res, locals[res.Name], e.identity)
		if buildErr != nil {
			report.Failed[st.Name] = buildErr

			continue
		}

		if err := a.PrecheckRestore(ctx, st.Hash, st.Token); err != nil {
			if opts.NoNewSnapshot {
				return report, errs.New(errs.ClassPrecondition, st.Name, "restore",
					fmt.Errorf("dirty and --no-new-snapshot set: %w", err))
			}

			report.Failed[st.Name] = err

			continue
		}

		if err := a.Restore(ctx, st.Hash, st.Token); err != nil {
			report.Failed[st.Name] = err

			continue
		}

		report.Restored = append(report.Restored, st.Name)
	}

	frozen, err := store.ReadLineage(e.store.SnapshotLineageDir(hash))
	if err != nil {
		return report, err
	}

	if err := store.ClearLineage(e.store.CurrentLineageDir(), frozen); err != nil {
		return report, err
	}

	return report, nil
}

// autoSnapshotIfDirty checks every selected resource's current state
// against what restore is about to overwrite and, if any of them are
// dirty, takes a full snapshot first so the pre-restore state is never
// lost. It returns the empty string if nothing needed snapshotting.
func (e *Engine) autoSnapshotIfDirty(
	ctx context.Context,
	selected []model.ResourceState,
	byName map[string]model.Resource,
	locals map[string]model.LocalParams,
) (string, error) {
	dirty := false

	for _, st := range selected {
		res := byName[st.Name]

		a, err := registry.Build(e.store, res, locals[res.Name], e.identity)
		if err != nil {
			return "", err
		}

		if err := a.PrecheckRestore(ctx, st.Hash, st.Token); err != nil {
			dirty = true

			break
		}
	}

	if !dirty {
		return "", nil
	}

	snap := snapshotengine.New(e.store, e.identity)

	result, err := snap.Snapshot(ctx, "", "dwc: auto-snapshot before restore", nil, false)
	if err != nil {
		return "", errs.New(errs.ClassPrecondition, "", "restore-auto-snapshot", err)
	}

	return result.Hash, nil
}

func currentHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", errs.New(errs.ClassInternal, "", "restore", err)
	}

	return hostname, nil
}
