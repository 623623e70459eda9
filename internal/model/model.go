// Package model defines the data types shared by every dwc engine: the
// resource catalogue, snapshot manifests and history, and lineage records.
// These are pure data structures; persistence lives in internal/store,
// backend behaviour in internal/resource.
package model

import "time"

// Role classifies what a resource is used for.
type Role string

// The four resource roles named by the catalogue.
const (
	RoleSourceData     Role = "source-data"
	RoleIntermediate   Role = "intermediate-data"
	RoleCode           Role = "code"
	RoleResults        Role = "results"
)

// BackendKind identifies which adaptor implementation backs a resource.
type BackendKind string

// The five supported backend kinds.
const (
	BackendManagedGit    BackendKind = "managed-git"
	BackendGitSubdir     BackendKind = "git-subdir"
	BackendLocalFiles    BackendKind = "local-files"
	BackendExternalSync  BackendKind = "external-sync"
	BackendObjectStore   BackendKind = "object-store"
)

// Resource is a named, role-tagged collection of files with one backend.
// SharedParams and LocalParams are serialised separately: the former is
// versioned as part of the catalogue, the latter is per-clone and never
// leaves this machine.
type Resource struct {
	Name        string         `json:"name"`
	Role        Role           `json:"role"`
	Backend     BackendKind    `json:"backend"`
	ReadOnly    bool           `json:"read_only"`
	SharedParams map[string]string `json:"shared_params"`
}

// LocalParams holds the per-clone, machine-specific settings for one
// resource: principally its on-disk path.
type LocalParams struct {
	Path string            `json:"path"`
	Extra map[string]string `json:"extra,omitempty"`
}

// ResourceState is what a resource adaptor reports after snapshot() or
// diff(): a content hash and an opaque backend-specific token.
type ResourceState struct {
	Name  string `json:"name"`
	Hash  string `json:"hash"`
	Token string `json:"token,omitempty"`
}

// Manifest is the canonical, content-addressed description of one snapshot.
// Field order matters: it is serialised with keys in this declaration order
// (via an ordered encoder, see internal/store) so the sha1 over its bytes
// is reproducible across machines.
type Manifest struct {
	Workspace   string            `json:"workspace"`
	Params      map[string]string `json:"params"`
	Resources   []ResourceState   `json:"resources"`
	LineageDir  string            `json:"lineage_dir"`
}

// HistoryEntry records one snapshot's appearance in the workspace history.
// Entries are ordered newest-first in memory; newest-last on disk.
type HistoryEntry struct {
	Hash      string            `json:"hash"`
	Tags      []string          `json:"tags"`
	Hostname  string            `json:"hostname"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Ref is a (resource-name, optional-subpath) pair denoting a logical
// artefact tracked by the lineage recorder. Equality is by value.
type Ref struct {
	Resource string `json:"resource"`
	Subpath  string `json:"subpath,omitempty"`
}

// Certificate is what a lineage reference resolves to: either a step's
// identity (StepID non-empty) or a source-data resource-version hash
// (Hash non-empty). Exactly one of the two is set.
type Certificate struct {
	StepID string `json:"step_id,omitempty"`
	Hash   string `json:"hash,omitempty"`
}

// IsSource reports whether this certificate names source data rather than
// a producing step.
func (c Certificate) IsSource() bool { return c.StepID == "" }

// Input is one input edge of a step record: the lineage reference it reads,
// and the certificate that produced (or captured) the version it read.
type Input struct {
	Ref         Ref         `json:"ref"`
	Certificate Certificate `json:"certificate"`
}

// StepRecord is one entry in the lineage DAG: a named step's inputs,
// outputs, and parameters.
type StepRecord struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Start     time.Time         `json:"start"`
	Duration  time.Duration     `json:"duration"`
	Inputs    []Input           `json:"inputs"`
	Outputs   []Ref             `json:"outputs"`
	Params    map[string]string `json:"params,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	CodeRef   Ref               `json:"code_ref"`
}

// SourceRecord pins a lineage reference to the resource-version hash it had
// when first observed as an input with no producing step.
type SourceRecord struct {
	Ref  Ref    `json:"ref"`
	Hash string `json:"hash"`
}
