// Package lineage implements the provenance recorder: a DAG of steps and
// the data references they read and write, with a consistency check that
// catches two steps disagreeing about the resource-version a shared
// reference actually held.
package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/model"
	"github.com/dwspace/dwc/internal/store"
)

// Recorder accumulates lineage for one workspace's working set, backed by
// the lineage document at dir (the store's CurrentLineageDir, ordinarily).
type Recorder struct {
	dir string
	now func() time.Time
}

// New returns a Recorder persisting to dir.
func New(dir string) *Recorder {
	return &Recorder{dir: dir, now: time.Now}
}

// StepHandle is the token returned by BeginStep and consumed by EndStep.
type StepHandle struct {
	id     string
	name   string
	start  time.Time
	inputs []model.Input
	params map[string]string
	code   model.Ref
}

// BeginStep opens a step named name, reading inputs (each resolved to the
// certificate currently on file for its reference, or minted as a fresh
// source certificate if this is the first time the reference is seen).
// codeRef names the lineage reference for the code that ran (typically the
// "code" resource at the path of the invoked script).
func (r *Recorder) BeginStep(ctx context.Context, name string, inputs []model.Ref, params map[string]string, codeRef model.Ref, resourceHash func(model.Ref) (string, error)) (*StepHandle, error) {
	doc, err := store.ReadLineage(r.dir)
	if err != nil {
		return nil, errs.New(errs.ClassInternal, "", "lineage-begin-step", err)
	}

	resolved := make([]model.Input, 0, len(inputs))

	for _, ref := range inputs {
		cert, certErr := resolveCertificate(&doc, ref, resourceHash)
		if certErr != nil {
			return nil, certErr
		}

		resolved = append(resolved, model.Input{Ref: ref, Certificate: cert})
	}

	if err := store.WriteLineage(r.dir, doc); err != nil {
		return nil, errs.New(errs.ClassInternal, "", "lineage-begin-step", err)
	}

	return &StepHandle{
		id:     newStepID(name, r.now()),
		name:   name,
		start:  r.now(),
		inputs: resolved,
		params: params,
		code:   codeRef,
	}, nil
}

// resolveCertificate returns the certificate for ref: the existing one on
// file, or a freshly minted source certificate pinning the resource's
// current content hash when ref has never been observed.
func resolveCertificate(doc *store.LineageDoc, ref model.Ref, resourceHash func(model.Ref) (string, error)) (model.Certificate, error) {
	key := store.RefKey(ref)

	if cert, ok := doc.Certificates[key]; ok {
		return cert, nil
	}

	hash, err := resourceHash(ref)
	if err != nil {
		return model.Certificate{}, errs.New(errs.ClassInternal, ref.Resource, "lineage-resolve-source",
			fmt.Errorf("reference %s never observed and its current hash can't be read: %w", key, err))
	}

	cert := model.Certificate{Hash: hash}
	doc.Certificates[key] = cert
	doc.Sources = append(doc.Sources, model.SourceRecord{Ref: ref, Hash: hash})

	return cert, nil
}

// EndStep closes handle, recording outputs with the given metrics. Each
// output's certificate is set to name this step, overwriting whatever
// previously produced that reference — an orphaned prior producer remains
// on record as history but is no longer reachable from any current
// reference. Before persisting, the resulting graph is checked for
// consistency; a violation fails the step and nothing is written, per the
// recorder's "report at record time, not later" contract.
func (r *Recorder) EndStep(handle *StepHandle, outputs []model.Ref, metrics map[string]float64) error {
	doc, err := store.ReadLineage(r.dir)
	if err != nil {
		return errs.New(errs.ClassInternal, "", "lineage-end-step", err)
	}

	step := model.StepRecord{
		ID:       handle.id,
		Name:     handle.name,
		Start:    handle.start,
		Duration: r.now().Sub(handle.start),
		Inputs:   handle.inputs,
		Outputs:  outputs,
		Params:   handle.params,
		Metrics:  metrics,
		CodeRef:  handle.code,
	}

	doc.Steps = append(doc.Steps, step)

	for _, ref := range outputs {
		doc.Certificates[store.RefKey(ref)] = model.Certificate{StepID: step.ID}
	}

	if err := CheckConsistency(doc); err != nil {
		return err
	}

	return store.WriteLineage(r.dir, doc)
}

// Run is the convenience entry point for "dwc run": it wraps argv in a
// begin/end pair around exec, recording the inputs and outputs the caller
// passes in. argv's own arguments are not inspected: no input or output is
// inferred from paths named on the command line.
func (r *Recorder) Run(
	ctx context.Context,
	argv []string,
	inputs, outputs []model.Ref,
	codeRef model.Ref,
	resourceHash func(model.Ref) (string, error),
	exec func(ctx context.Context, argv []string) (metrics map[string]float64, err error),
) error {
	name := "run"
	if len(argv) > 0 {
		name = argv[0]
	}

	handle, err := r.BeginStep(ctx, name, inputs, map[string]string{"argv": fmt.Sprint(argv)}, codeRef, resourceHash)
	if err != nil {
		return err
	}

	metrics, runErr := exec(ctx, argv)
	if runErr != nil {
		return errs.New(errs.ClassBackend, "", "lineage-run", runErr)
	}

	return r.EndStep(handle, outputs, metrics)
}

func newStepID(name string, start time.Time) string {
	return fmt.Sprintf("%s-%d", name, start.UnixNano())
}
