// Package externalsync implements the external-sync resource backend: a
// directory kept in step with a remote through an external rclone-like
// tool, invoked as a subprocess. dwc never speaks the remote's protocol
// itself — the tool call is the entire integration surface, per the
// backend's "opaque subprocess behind a narrow adaptor" contract.
package externalsync

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/dwspace/dwc/internal/blobstore"
	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/hashtree"
	"github.com/dwspace/dwc/internal/rotate"
)

// Direction says which side of the sync is authoritative.
type Direction string

const (
	// DirectionRemoteMaster means the remote owns history: snapshotting
	// re-syncs local from remote first, and restore re-syncs again rather
	// than replaying a historical local state.
	DirectionRemoteMaster Direction = "remote-master"
	// DirectionLocalMaster means local owns history: snapshotting captures
	// local content into the blob store like the local-files backend, and
	// restore replays from that store.
	DirectionLocalMaster Direction = "local-master"
)

// Mode is the sync mode passed to the external tool.
type Mode string

const (
	// ModeCopy only adds/updates files, never deletes from the destination.
	ModeCopy Mode = "copy"
	// ModeSync makes the destination an exact mirror of the source,
	// deleting files absent there.
	ModeSync Mode = "sync"
)

// Adaptor backs one external-sync resource.
type Adaptor struct {
	name           string
	root           string
	remoteURL      string
	direction      Direction
	mode           Mode
	tool           string
	blobs          *blobstore.Store
	readOnly       bool
	resultsExclude func(relpath string) bool
}

// SetResultsExclude configures which relpaths ResultsRotate leaves at the
// resource root rather than moving. Only meaningful for DirectionLocalMaster.
func (a *Adaptor) SetResultsExclude(exclude func(relpath string) bool) {
	a.resultsExclude = exclude
}

// ResultsRotate moves the resource's current local files into relpath.
// Only valid for DirectionLocalMaster: a remote-master resource has no
// local history to rotate, since restore always re-syncs from the remote.
// Implements resource.ResultsRotator.
func (a *Adaptor) ResultsRotate(_ context.Context, relpath string) error {
	if a.direction == DirectionRemoteMaster {
		return errs.New(errs.ClassUser, a.name, "results-rotate",
			fmt.Errorf("remote-master external-sync resources cannot be a results role"))
	}

	if err := rotate.Move(a.root, relpath, a.resultsExclude); err != nil {
		return errs.New(errs.ClassBackend, a.name, "results-rotate", err)
	}

	return nil
}

// New returns an adaptor rooted at root, synchronised with remoteURL via
// the named external tool (e.g. "rclone"). blobDir is only used when
// direction is DirectionLocalMaster.
func New(name, root, blobDir, remoteURL string, direction Direction, mode Mode, tool string) *Adaptor {
	if tool == "" {
		tool = "rclone"
	}

	return &Adaptor{
		name:      name,
		root:      root,
		remoteURL: remoteURL,
		direction: direction,
		mode:      mode,
		tool:      tool,
		blobs:     blobstore.New(blobDir),
	}
}

// Name returns the resource's catalogue name.
func (a *Adaptor) Name() string { return a.name }

// SetReadOnly marks the resource as read-only, refusing pushes and
// restores that would overwrite local or remote content.
func (a *Adaptor) SetReadOnly(ro bool) { a.readOnly = ro }

// PrecheckSnapshot verifies the external tool is on PATH.
func (a *Adaptor) PrecheckSnapshot(_ context.Context) error {
	if _, err := exec.LookPath(a.tool); err != nil {
		return errs.New(errs.ClassPrecondition, a.name, "snapshot-precheck", errs.ErrToolMissing)
	}

	return nil
}

// Snapshot, when the remote is master, re-syncs local from remote and
// hashes the result without recording a blob catalogue entry (there is
// nothing to later replay locally — restore just re-syncs again). When
// local is master, it hashes and captures local content the same way the
// local-files backend does.
func (a *Adaptor) Snapshot(ctx context.Context) (string, string, error) {
	if a.direction == DirectionRemoteMaster {
		if err := a.run(ctx, a.remoteURL, a.root); err != nil {
			return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
		}

		treeHash, err := hashtree.Hash(a.root, nil)
		if err != nil {
			return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
		}

		return string(treeHash), string(treeHash), nil
	}

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

// PrecheckRestore refuses when read-only. For a remote-master resource
// there is nothing else to check: restore always re-syncs from the
// remote's current state. For a local-master resource it requires a
// catalogue entry for hash, same as local-files, and refuses when the
// directory has changed since the last snapshot and the restore target
// isn't already that last snapshot.
func (a *Adaptor) PrecheckRestore(_ context.Context, hash, _ string) error {
	if a.readOnly {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", fmt.Errorf("resource is read-only"))
	}

	if a.direction == DirectionRemoteMaster {
		if _, err := exec.LookPath(a.tool); err != nil {
			return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", errs.ErrToolMissing)
		}

		return nil
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

// Restore re-syncs from the remote (remote-master) or replays the blob
// catalogue entry for hash (local-master).
func (a *Adaptor) Restore(ctx context.Context, hash, _ string) error {
	if a.direction == DirectionRemoteMaster {
		if err := a.run(ctx, a.remoteURL, a.root); err != nil {
			return errs.New(errs.ClassBackend, a.name, "restore", err)
		}

		return nil
	}

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
// directory and the local-master snapshot recorded for otherHash. For a
// remote-master resource there is no historical local state to diff
// against, so it reports nothing.
func (a *Adaptor) Diff(_ context.Context, otherHash string) ([]string, error) {
	if a.direction == DirectionRemoteMaster {
		return nil, nil
	}

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

// Push syncs local content to the remote.
func (a *Adaptor) Push(ctx context.Context) error {
	if a.readOnly {
		return errs.New(errs.ClassPrecondition, a.name, "push", fmt.Errorf("resource is read-only"))
	}

	if err := a.run(ctx, a.root, a.remoteURL); err != nil {
		return errs.New(errs.ClassBackend, a.name, "push", err)
	}

	return nil
}

// Pull syncs the remote's content to local.
func (a *Adaptor) Pull(ctx context.Context) error {
	if err := a.run(ctx, a.remoteURL, a.root); err != nil {
		return errs.New(errs.ClassBackend, a.name, "pull", err)
	}

	return nil
}

// Clone materialises this resource by syncing the remote into targetPath.
func (a *Adaptor) Clone(ctx context.Context, targetPath string) error {
	if err := a.run(ctx, a.remoteURL, targetPath); err != nil {
		return errs.New(errs.ClassBackend, a.name, "clone", err)
	}

	return nil
}

func (a *Adaptor) run(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, a.tool, string(a.mode), src, dst)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s %s -> %s: %w: %s", a.tool, a.mode, src, dst, err, stderr.String())
	}

	return nil
}
