// Package store implements the on-disk workspace layout: one JSON document
// per logical table, funnelled through a schema-validating, atomically
// rewriting accessor. Catalogue mutation goes through MutateCatalogue, which
// rejects duplicate resource names before anything hits disk; the
// local-parameter and no-path-overlap invariants are checked separately by
// CheckInvariants.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/model"
)

// MetaDirName is the hidden directory holding all workspace metadata,
// relative to the workspace root.
const MetaDirName = ".dataworkspace"

const (
	docCatalogue          = "resources"
	docLocalParams        = "local_params"
	docResourceLocalParams = "resource_local_params"
	docSnapshotHistory    = "snapshot_history"
)

// Store is the accessor for one workspace's metadata directory.
type Store struct {
	root    string // workspace root, parent of MetaDirName
	metaDir string
}

// Open returns a Store rooted at root. It does not require the metadata
// directory to already exist; Init creates it.
func Open(root string) *Store {
	return &Store{root: root, metaDir: filepath.Join(root, MetaDirName)}
}

// Root returns the workspace root directory.
func (s *Store) Root() string { return s.root }

// MetaDir returns the hidden metadata directory.
func (s *Store) MetaDir() string { return s.metaDir }

// SnapshotsDir returns the directory holding manifest and history documents.
func (s *Store) SnapshotsDir() string { return filepath.Join(s.metaDir, "snapshots") }

// SnapshotLineageDir returns the per-snapshot frozen lineage directory for hash.
func (s *Store) SnapshotLineageDir(hash string) string {
	return filepath.Join(s.metaDir, "snapshot_lineage", hash)
}

// CurrentLineageDir returns the working (unfrozen) lineage directory.
func (s *Store) CurrentLineageDir() string {
	return filepath.Join(s.metaDir, "current_lineage")
}

// FileBackendDir returns the local-files backend's blob-index directory for
// the named resource.
func (s *Store) FileBackendDir(resource string) string {
	return filepath.Join(s.metaDir, "file", resource)
}

// ScratchDir returns the scratch directory for the named resource, used by
// adaptors with no stable local materialisation (e.g. object store).
func (s *Store) ScratchDir(resource string) string {
	return filepath.Join(s.metaDir, "scratch", resource)
}

// Init creates an empty metadata directory layout for a new workspace.
func (s *Store) Init() error {
	dirs := []string{
		s.metaDir,
		s.SnapshotsDir(),
		s.CurrentLineageDir(),
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("init %s: %w", d, err)
		}
	}

	if err := writeDocument(s.metaDir, docCatalogue, []model.Resource{}); err != nil {
		return err
	}

	if err := writeDocument(s.metaDir, docResourceLocalParams, map[string]model.LocalParams{}); err != nil {
		return err
	}

	return writeDocument(s.SnapshotsDir(), docSnapshotHistory, []model.HistoryEntry{})
}

// Catalogue returns the current resource list, catalogue order preserved.
func (s *Store) Catalogue() ([]model.Resource, error) {
	var resources []model.Resource
	if err := readDocument(s.metaDir, docCatalogue, &resources); err != nil {
		return nil, err
	}

	return resources, nil
}

// MutateCatalogue loads the catalogue, passes it to fn for in-place
// modification, validates catalogue invariants, and atomically writes the
// result back. No partial write is visible to other readers.
func (s *Store) MutateCatalogue(fn func(*[]model.Resource) error) error {
	resources, err := s.Catalogue()
	if err != nil {
		return err
	}

	if err := fn(&resources); err != nil {
		return err
	}

	if err := validateCatalogueInvariants(resources); err != nil {
		return err
	}

	return writeDocument(s.metaDir, docCatalogue, resources)
}

func validateCatalogueInvariants(resources []model.Resource) error {
	seen := make(map[string]bool, len(resources))

	for _, r := range resources {
		if seen[r.Name] {
			return errs.New(errs.ClassUser, r.Name, "catalogue",
				fmt.Errorf("duplicate resource name %q", r.Name))
		}

		seen[r.Name] = true
	}

	return nil
}

// LocalParamsFor returns the local (per-clone, unversioned) parameters for
// every resource, keyed by resource name.
func (s *Store) LocalParamsFor() (map[string]model.LocalParams, error) {
	params := map[string]model.LocalParams{}
	if err := readDocument(s.metaDir, docResourceLocalParams, &params); err != nil {
		return nil, err
	}

	return params, nil
}

// SetLocalParams records the local parameters for one resource.
func (s *Store) SetLocalParams(resource string, params model.LocalParams) error {
	all, err := s.LocalParamsFor()
	if err != nil {
		return err
	}

	all[resource] = params

	return writeDocument(s.metaDir, docResourceLocalParams, all)
}

// checkPathInvariant verifies resource (i) has a local-parameter entry and
// (ii) its path does not equal or contain/be-contained-by any other
// resource's path. Called by engines before mutating operations; kept out
// of MutateCatalogue because it needs local params, which live in a
// different (unversioned) document.
func (s *Store) checkPathInvariant(resources []model.Resource, locals map[string]model.LocalParams) error {
	paths := make([]string, 0, len(resources))

	for _, r := range resources {
		lp, ok := locals[r.Name]
		if !ok {
			return errs.New(errs.ClassInconsistency, r.Name, "catalogue",
				fmt.Errorf("resource %q has no local-parameter entry on this clone", r.Name))
		}

		paths = append(paths, filepath.Clean(lp.Path))
	}

	sort.Strings(paths)

	for i := 1; i < len(paths); i++ {
		if paths[i] == paths[i-1] || isWithin(paths[i], paths[i-1]) {
			return errs.New(errs.ClassInconsistency, "", "catalogue",
				fmt.Errorf("resource paths %q and %q overlap", paths[i-1], paths[i]))
		}
	}

	return nil
}

func isWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)

	return err == nil && rel != "." && !filepathHasDotDotPrefix(rel)
}

func filepathHasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".."
}

// CheckInvariants validates both catalogue invariants and the local-params
// completeness/no-overlap invariants together.
func (s *Store) CheckInvariants() error {
	resources, err := s.Catalogue()
	if err != nil {
		return err
	}

	if err := validateCatalogueInvariants(resources); err != nil {
		return err
	}

	locals, err := s.LocalParamsFor()
	if err != nil {
		return err
	}

	return s.checkPathInvariant(resources, locals)
}
