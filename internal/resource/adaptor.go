// Package resource defines the capability-based adaptor contract every
// storage backend implements, plus the optional capability interfaces a
// backend may satisfy. Engines dispatch by type-asserting an Adaptor
// against the optional interfaces rather than calling a "not supported"
// stub, so a backend that has no remote simply doesn't implement Syncer.
package resource

import (
	"context"
	"io"
)

// Adaptor is the capability set every resource backend must implement.
type Adaptor interface {
	// Name returns the resource's catalogue name.
	Name() string

	// PrecheckSnapshot verifies a snapshot can succeed without mutating
	// user state (e.g. working copy clean enough, untracked files movable).
	PrecheckSnapshot(ctx context.Context) error

	// Snapshot produces a stable identifier for the current state: a
	// content hash, and an opaque backend-specific token the adaptor will
	// need later to restore this exact state.
	Snapshot(ctx context.Context) (hash string, token string, err error)

	// PrecheckRestore verifies the state named by hash/token is reachable
	// locally without unacceptable data loss.
	PrecheckRestore(ctx context.Context, hash, token string) error

	// Restore moves local state to match the given snapshot.
	Restore(ctx context.Context, hash, token string) error

	// Diff returns the set of paths that changed between the current
	// state and otherHash.
	Diff(ctx context.Context, otherHash string) ([]string, error)
}

// Syncer is implemented by adaptors with a remote to synchronise with.
// Backends with no remote (e.g. plain local files) simply don't implement it.
type Syncer interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) error
	Clone(ctx context.Context, targetPath string) error
}

// ResultsRotator is implemented only by resources with role results; see
// the rotate package for the shared rotation algorithm every backend calls.
type ResultsRotator interface {
	ResultsRotate(ctx context.Context, relpath string) error
}

// FilesystemView is implemented by backends without stable local
// materialisation (the object-store backend), exposing read access scoped
// to a selectable snapshot context.
type FilesystemView interface {
	Ls(ctx context.Context, path string) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ReadOnlyAware is implemented by adaptors that need to know the resource's
// read-only flag to refuse remote-writing restores.
type ReadOnlyAware interface {
	SetReadOnly(bool)
}
