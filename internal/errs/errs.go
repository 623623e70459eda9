// Package errs defines the error taxonomy shared by every dwc engine. Each
// engine boundary wraps backend-specific failures into one of these classes
// so that cmd/dwc can map any error to the right exit code without
// inspecting backend error strings.
package errs

import (
	"errors"
	"fmt"
)

// Class identifies which row of the error taxonomy an Error belongs to.
type Class int

const (
	// ClassUser covers bad arguments and other user-input mistakes.
	// Reported, exit 1, no side effects.
	ClassUser Class = iota
	// ClassPrecondition covers dirty resources, missing external tools, and
	// other checks that fail before any mutation happens. Exit 1.
	ClassPrecondition
	// ClassInconsistency covers lineage inconsistency, schema drift, and
	// hash mismatches discovered while re-reading a resource. Exit 3.
	ClassInconsistency
	// ClassBackend covers a VCS or sync tool exiting non-zero, or an SDK
	// call failing. Exit 2.
	ClassBackend
	// ClassInternal covers invariant violations. Exit >3, unrecoverable.
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassUser:
		return "user"
	case ClassPrecondition:
		return "precondition"
	case ClassInconsistency:
		return "inconsistency"
	case ClassBackend:
		return "backend"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code for the class, per the taxonomy.
func (c Class) ExitCode() int {
	switch c {
	case ClassUser, ClassPrecondition:
		return 1
	case ClassBackend:
		return 2
	case ClassInconsistency:
		return 3
	case ClassInternal:
		return 4
	default:
		return 4
	}
}

// Error is a classified error that carries the resource and phase it
// originated from, when known.
type Error struct {
	Class    Class
	Resource string
	Phase    string
	Err      error
}

// New builds a classified Error wrapping err.
func New(class Class, resource, phase string, err error) *Error {
	return &Error{Class: class, Resource: resource, Phase: phase, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Resource != "" && e.Phase != "":
		return fmt.Sprintf("%s [%s/%s]: %v", e.Class, e.Resource, e.Phase, e.Err)
	case e.Resource != "":
		return fmt.Sprintf("%s [%s]: %v", e.Class, e.Resource, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Class, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the process exit code implied by e's class.
func (e *Error) ExitCode() int { return e.Class.ExitCode() }

// ClassOf returns the Class of err if it is (or wraps) an *Error, and ok=true.
func ClassOf(err error) (Class, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Class, true
	}

	return 0, false
}

// ExitCode returns the exit code implied by err: the taxonomy code if err is
// a classified *Error, or 1 for any other non-nil error, or 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if classified, ok := ClassOf(err); ok {
		return classified.ExitCode()
	}

	return 1
}

// Sentinel errors matched with errors.Is by callers that need to branch on
// a specific failure rather than just its class.
var (
	// ErrUnknownResource is returned when a named resource isn't in the catalogue.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrAmbiguousSelection is returned when both --only and --leave are given.
	ErrAmbiguousSelection = errors.New("--only and --leave are mutually exclusive")
	// ErrTagExists is returned when a tag already names a different snapshot on this host.
	ErrTagExists = errors.New("tag already bound to a different snapshot")
	// ErrDirty is returned when a resource has uncommitted local changes that
	// block a destructive operation.
	ErrDirty = errors.New("resource has local changes")
	// ErrRemoteAhead is returned when a push target has commits not reachable locally.
	ErrRemoteAhead = errors.New("remote is ahead of local")
	// ErrToolMissing is returned when a required external tool is not on PATH.
	ErrToolMissing = errors.New("required external tool not found")
	// ErrLineageInconsistent is returned when a lineage reference resolves to
	// two different resource-version hashes in the same transitive closure.
	ErrLineageInconsistent = errors.New("inconsistent lineage")
	// ErrSchemaDrift is returned when an on-disk document fails schema validation.
	ErrSchemaDrift = errors.New("on-disk schema drift")
	// ErrHashMismatch is returned when a re-read resource's hash no longer
	// matches what the catalogue recorded.
	ErrHashMismatch = errors.New("hash mismatch on re-read")
)
