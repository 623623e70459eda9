// Package snapshotengine implements the snapshot operation: the five-phase
// plan/rotate/freeze/capture/commit pipeline that produces one
// content-addressed, multi-resource snapshot.
package snapshotengine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/metricsextract"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/plan"
	"github.com/dwspace/dwc/internal/registry"
	"github.com/dwspace/dwc/internal/resource"
	"github.com/dwspace/dwc/internal/store"
)

// Engine runs snapshot operations against one workspace.
type Engine struct {
	store    *store.Store
	identity registry.Identity
	now      func() time.Time
}

// New returns an Engine for the given store.
func New(s *store.Store, identity registry.Identity) *Engine {
	return &Engine{store: s, identity: identity, now: time.Now}
}

// Result is what a successful Snapshot call reports.
type Result struct {
	Hash       string
	Reused     bool // true if this hash already had a manifest (idempotent append)
	HistoryLen int
}

// Snapshot runs the five-phase pipeline: precheck every non-skipped
// resource, rotate results resources, freeze the working lineage, capture
// content and hash the manifest, then commit the history entry and the
// workspace's own backing repository. skip names resources to leave out of
// this snapshot entirely (neither prechecked nor captured). If tag already
// names a snapshot on this host, Snapshot refuses unless forceTag is set, in
// which case the tag is moved off its previous owner onto this snapshot.
func (e *Engine) Snapshot(ctx context.Context, tag, message string, skip map[string]bool, forceTag bool) (Result, error) {
	catalogue, err := e.store.Catalogue()
	if err != nil {
		return Result{}, err
	}

	locals, err := e.store.LocalParamsFor()
	if err != nil {
		return Result{}, err
	}

	if err := e.store.CheckInvariants(); err != nil {
		return Result{}, err
	}

	hostname, _ := os.Hostname()

	history, err := e.store.History()
	if err != nil {
		return Result{}, err
	}

	if tag != "" {
		if owner, ok := store.TagOwner(history, hostname, tag); ok {
			if !forceTag {
				return Result{}, errs.New(errs.ClassUser, "", "snapshot",
					fmt.Errorf("%w: tag %q already names %s on %s", errs.ErrTagExists, tag, owner, hostname))
			}

			if err := e.store.StripTag(hostname, tag); err != nil {
				return Result{}, err
			}
		}
	}

	active := make([]model.Resource, 0, len(catalogue))
	adaptors := make(map[string]resource.Adaptor, len(catalogue))

	for _, res := range catalogue {
		if skip[res.Name] {
			continue
		}

		a, buildErr := registry.Build(e.store, res, locals[res.Name], e.identity)
		if buildErr != nil {
			return Result{}, buildErr
		}

		active = append(active, res)
		adaptors[res.Name] = a
	}

	// Phase 1: plan/precheck.
	actions := make([]plan.Action, 0, len(active))

	for _, res := range active {
		a := adaptors[res.Name]
		actions = append(actions, plan.Action{
			Description: "precheck-snapshot " + res.Name,
			Validate:    a.PrecheckSnapshot,
		})
	}

	if err := plan.New(actions...).Validate(ctx); err != nil {
		return Result{}, err
	}

	// Phase 2: results rotation.
	relpath := resultsRelpath(hostname, tag, e.now())

	for _, res := range active {
		if res.Role != model.RoleResults {
			continue
		}

		rotator, ok := adaptors[res.Name].(resource.ResultsRotator)
		if !ok {
			continue
		}

		if err := rotator.ResultsRotate(ctx, relpath); err != nil {
			return Result{}, err
		}
	}

	// Phase 3: lineage freeze (placeholder; renamed to its final name once
	// the snapshot hash is known in phase 5).
	placeholderDir := e.store.CurrentLineageDir() + ".freezing"

	if err := store.FreezeLineage(e.store.CurrentLineageDir(), placeholderDir); err != nil {
		return Result{}, err
	}

	// Phase 4: content capture.
	states := make([]model.ResourceState, 0, len(active))

	for _, res := range active {
		hash, token, err := adaptors[res.Name].Snapshot(ctx)
		if err != nil {
			os.RemoveAll(placeholderDir)

			return Result{}, err
		}

		states = append(states, model.ResourceState{Name: res.Name, Hash: hash, Token: token})
	}

	manifest := model.Manifest{
		Workspace:  e.store.Root(),
		Params:     map[string]string{},
		Resources:  states,
		LineageDir: "", // filled in once the final hash-keyed path is known
	}

	snapshotHash, err := store.HashManifest(manifest)
	if err != nil {
		os.RemoveAll(placeholderDir)

		return Result{}, err
	}

	manifest.LineageDir = e.store.SnapshotLineageDir(snapshotHash)

	// Phase 5: commit.
	reused := e.store.ManifestExists(snapshotHash)

	if !reused {
		if err := e.store.WriteManifest(snapshotHash, manifest); err != nil {
			os.RemoveAll(placeholderDir)

			return Result{}, err
		}

		if err := store.CommitFrozenLineage(placeholderDir, manifest.LineageDir); err != nil {
			return Result{}, err
		}
	} else {
		os.RemoveAll(placeholderDir)
	}

	entry := model.HistoryEntry{
		Hash:      snapshotHash,
		Hostname:  hostname,
		Timestamp: e.now(),
		Message:   message,
		Metrics:   scanResultsMetrics(active, locals),
	}

	if tag != "" {
		entry.Tags = []string{tag}
	}

	newHistory, err := e.store.AppendHistory(entry)
	if err != nil {
		return Result{}, err
	}

	if err := commitWorkspaceRepo(e.store.Root(), message, e.identity); err != nil {
		return Result{}, err
	}

	return Result{Hash: snapshotHash, Reused: reused, HistoryLen: len(newHistory)}, nil
}

// resultsRelpath derives the rotation target: "snapshots/<host>-<tag>" when
// a tag is given, else a timestamped path so untagged snapshots still
// rotate into a unique location.
func resultsRelpath(hostname, tag string, now time.Time) string {
	if tag != "" {
		return fmt.Sprintf("snapshots/%s-%s", hostname, tag)
	}

	day := now.Format("2006-01-02")
	stamp := now.Format("20060102-150405")
	user := strings.TrimSpace(os.Getenv("USER"))

	if user == "" {
		user = hostname
	}

	return fmt.Sprintf("snapshots/%s/%s-%s", day, stamp, user)
}

// scanResultsMetrics best-effort scans every results-role resource's local
// path for numeric fields in JSON output files, merging them under
// "<resource>.<key>" so metrics from several results resources never
// collide. A resource with no local path (pure remote object-store view) is
// skipped rather than failing the snapshot.
func scanResultsMetrics(active []model.Resource, locals map[string]model.LocalParams) map[string]float64 {
	out := map[string]float64{}

	for _, res := range active {
		if res.Role != model.RoleResults {
			continue
		}

		local, ok := locals[res.Name]
		if !ok || local.Path == "" {
			continue
		}

		found, err := metricsextract.Scan(local.Path)
		if err != nil {
			continue
		}

		for k, v := range found {
			out[res.Name+"."+k] = v
		}
	}

	return out
}

// commitWorkspaceRepo auto-commits the workspace's own metadata directory
// (catalogue, manifests, history, frozen lineage) into its backing
// repository, the same way a managed-git resource commits its own content.
func commitWorkspaceRepo(root, message string, identity registry.Identity) error {
	repo, err := gitrepo.Open(root)
	if err != nil {
		return errs.New(errs.ClassBackend, "", "snapshot-commit", err)
	}
	defer repo.Free()

	if _, err := repo.CommitAll("dwc: snapshot "+message, identity.Name, identity.Email); err != nil {
		return errs.New(errs.ClassBackend, "", "snapshot-commit", err)
	}

	return nil
}
