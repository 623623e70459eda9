// Package lineageclient is the stable, exported surface an ML "kit" links
// against to record lineage for a training/evaluation step against a dwc
// workspace, without pulling in the rest of the engine. A kit opens a
// Client against a workspace directory, brackets its work in BeginStep/End,
// and never touches the workspace's catalogue, snapshot, or sync machinery
// directly.
package lineageclient

import (
	"context"
	"path/filepath"

	"github.com/dwspace/dwc/internal/hashtree"
	"github.com/dwspace/dwc/internal/lineage"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/store"
)

// Ref names a lineage-tracked artefact: a resource and an optional path
// within it. The zero Subpath means "the resource as a whole".
type Ref struct {
	Resource string
	Subpath  string
}

func (r Ref) toModel() model.Ref {
	return model.Ref{Resource: r.Resource, Subpath: r.Subpath}
}

// Client records lineage against one workspace.
type Client struct {
	store    *store.Store
	recorder *lineage.Recorder
}

// Open returns a Client for the workspace rooted at dir. dir must already be
// a dwc workspace (i.e. "dwc init" has run there).
func Open(dir string) *Client {
	s := store.Open(dir)

	return &Client{store: s, recorder: lineage.New(s.CurrentLineageDir())}
}

// Step is the opaque handle returned by BeginStep and consumed by End. A
// caller outside this module can hold one but not construct or inspect it.
type Step struct {
	handle *lineage.StepHandle
}

// BeginStep opens a step named name with the given inputs and parameters.
// codeRef should normally point at the "code" resource path of the script
// that is running. Each input not already seen by this workspace's lineage
// gets a freshly minted source certificate pinned to its resource's current
// on-disk content hash.
func (c *Client) BeginStep(ctx context.Context, name string, inputs []Ref, params map[string]string, codeRef Ref) (*Step, error) {
	modelInputs := make([]model.Ref, len(inputs))
	for i, r := range inputs {
		modelInputs[i] = r.toModel()
	}

	handle, err := c.recorder.BeginStep(ctx, name, modelInputs, params, codeRef.toModel(), c.resourceHash)
	if err != nil {
		return nil, err
	}

	return &Step{handle: handle}, nil
}

// End closes step, recording outputs and the metrics observed for this run.
func (c *Client) End(step *Step, outputs []Ref, metrics map[string]float64) error {
	modelOutputs := make([]model.Ref, len(outputs))
	for i, r := range outputs {
		modelOutputs[i] = r.toModel()
	}

	return c.recorder.EndStep(step.handle, modelOutputs, metrics)
}

// Run is the all-in-one convenience wrapper: begin a step, run fn, end the
// step with whatever metrics fn reports. A non-nil error from fn is
// propagated without recording an End: no step record is written, and only
// the source certificates minted by BeginStep remain on disk.
func (c *Client) Run(
	ctx context.Context,
	name string,
	inputs, outputs []Ref,
	codeRef Ref,
	params map[string]string,
	fn func(ctx context.Context) (metrics map[string]float64, err error),
) error {
	step, err := c.BeginStep(ctx, name, inputs, params, codeRef)
	if err != nil {
		return err
	}

	metrics, runErr := fn(ctx)
	if runErr != nil {
		return runErr
	}

	return c.End(step, outputs, metrics)
}

// resourceHash computes the current content hash of ref's resource, scoped
// to ref.Subpath when set, by locating the resource's local on-disk path in
// the workspace's per-clone parameters and hashing it directly. This only
// serves references never before observed by lineage (BeginStep mints a
// source certificate from it); an already-certified reference never calls
// this.
func (c *Client) resourceHash(ref model.Ref) (string, error) {
	locals, err := c.store.LocalParamsFor()
	if err != nil {
		return "", err
	}

	local, ok := locals[ref.Resource]
	if !ok {
		return "", &UnknownResourceError{Resource: ref.Resource}
	}

	root := local.Path
	if ref.Subpath != "" {
		root = filepath.Join(root, ref.Subpath)
	}

	hash, err := hashtree.Hash(root, hashtree.ExcludeDirs("snapshots", ".git"))
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// UnknownResourceError is returned when a Ref names a resource absent from
// the workspace's local parameters (e.g. a typo, or a resource never added
// on this clone).
type UnknownResourceError struct {
	Resource string
}

func (e *UnknownResourceError) Error() string {
	return "lineageclient: unknown resource " + e.Resource
}
