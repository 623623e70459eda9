// Package localfiles implements the local-files resource backend: a plain
// directory with no version control of its own. Snapshot identity is a
// hash-tree digest of the directory; restoring re-materialises files from a
// content-addressed blob store keyed by per-file hash, since there is no
// repository to check out from.
package localfiles

import (
	"context"
	"fmt"

	"github.com/dwspace/dwc/internal/blobstore"
	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/hashtree"
	"github.com/dwspace/dwc/internal/rotate"
)

// Adaptor backs one local-files resource.
type Adaptor struct {
	name           string
	root           string
	blobs          *blobstore.Store
	readOnly       bool
	resultsExclude func(relpath string) bool
}

// New returns an adaptor rooted at root, with its blob index and content
// store under blobDir (typically the workspace's per-resource file/ dir).
func New(name, root, blobDir string) *Adaptor {
	return &Adaptor{name: name, root: root, blobs: blobstore.New(blobDir)}
}

// SetResultsExclude configures which relpaths a results-role resource's
// ResultsRotate leaves at the root (README files, persistent state) rather
// than moving into the rotated-to subpath. A nil exclude moves everything.
func (a *Adaptor) SetResultsExclude(exclude func(relpath string) bool) {
	a.resultsExclude = exclude
}

// ResultsRotate moves the resource's current files into relpath, per the
// results rotation policy. Implements resource.ResultsRotator.
func (a *Adaptor) ResultsRotate(_ context.Context, relpath string) error {
	if err := rotate.Move(a.root, relpath, a.resultsExclude); err != nil {
		return errs.New(errs.ClassBackend, a.name, "results-rotate", err)
	}

	return nil
}

// Name returns the resource's catalogue name.
func (a *Adaptor) Name() string { return a.name }

// SetReadOnly marks the resource as read-only, refusing restores.
func (a *Adaptor) SetReadOnly(ro bool) { a.readOnly = ro }

// PrecheckSnapshot is a no-op: any directory state is snapshottable.
func (a *Adaptor) PrecheckSnapshot(_ context.Context) error { return nil }

// Snapshot hashes the directory, captures any blob not already present in
// the content store, and records this snapshot's per-file map.
func (a *Adaptor) Snapshot(_ context.Context) (string, string, error) {
	treeHash, perFile, err := hashtree.HashFiles(a.root, nil)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	if err := a.blobs.Capture(a.root, perFile); err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	if err := a.blobs.RecordSnapshot(string(treeHash), perFile); err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	return string(treeHash), string(treeHash), nil
}

// PrecheckRestore refuses when the resource is read-only, when no blob
// catalogue entry exists for hash (the content was never captured here), or
// when the directory has changed since the last snapshot and the restore
// target isn't already that last snapshot.
func (a *Adaptor) PrecheckRestore(_ context.Context, hash, _ string) error {
	if a.readOnly {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", fmt.Errorf("resource is read-only"))
	}

	snapshots, err := a.blobs.Snapshots()
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	if _, ok := snapshots[hash]; !ok {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck",
			fmt.Errorf("no blob catalogue entry for %s", hash))
	}

	last, ok, err := a.blobs.Last()
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	if !ok {
		return nil
	}

	currentHash, _, err := hashtree.HashFiles(a.root, nil)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	dirty := string(currentHash) != last

	if dirty && last != hash {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", errs.ErrDirty)
	}

	return nil
}

// Restore rewrites the directory to match the per-file map recorded for
// hash, removing local files that weren't part of that snapshot.
func (a *Adaptor) Restore(_ context.Context, hash, _ string) error {
	snapshots, err := a.blobs.Snapshots()
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}

	wanted, ok := snapshots[hash]
	if !ok {
		return errs.New(errs.ClassPrecondition, a.name, "restore", fmt.Errorf("no blob catalogue entry for %s", hash))
	}

	if err := a.blobs.Materialize(a.root, wanted); err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}

	return nil
}

// Diff reports paths whose content hash differs between the current
// directory and the snapshot recorded for otherHash.
func (a *Adaptor) Diff(_ context.Context, otherHash string) ([]string, error) {
	_, currentPerFile, err := hashtree.HashFiles(a.root, nil)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	snapshots, err := a.blobs.Snapshots()
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	other := snapshots[otherHash]

	changed := make(map[string]struct{})

	for relpath, h := range currentPerFile {
		if other[relpath] != string(h) {
			changed[relpath] = struct{}{}
		}
	}

	for relpath := range other {
		if _, ok := currentPerFile[relpath]; !ok {
			changed[relpath] = struct{}{}
		}
	}

	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}

	return paths, nil
}
