package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dwspace/dwc/internal/model"
)

const (
	docSteps        = "steps"
	docSources      = "sources"
	docCertificates = "certificates"
)

// LineageDoc is the three-table document set stored under one lineage
// directory (either the working set or one snapshot's frozen copy).
type LineageDoc struct {
	Steps        []model.StepRecord
	Sources      []model.SourceRecord
	Certificates map[string]model.Certificate // keyed by RefKey(ref)
}

// RefKey returns the stable map key for a lineage reference.
func RefKey(ref model.Ref) string {
	if ref.Subpath == "" {
		return ref.Resource
	}

	return ref.Resource + ":" + ref.Subpath
}

// ReadLineage loads the lineage document at dir. A missing directory
// yields an empty document, not an error: a fresh workspace has no
// recorded lineage yet.
func ReadLineage(dir string) (LineageDoc, error) {
	doc := LineageDoc{Certificates: map[string]model.Certificate{}}

	if err := readDocument(dir, docSteps, &doc.Steps); err != nil && !errors.Is(err, os.ErrNotExist) {
		return LineageDoc{}, err
	}

	if err := readDocument(dir, docSources, &doc.Sources); err != nil && !errors.Is(err, os.ErrNotExist) {
		return LineageDoc{}, err
	}

	if err := readDocument(dir, docCertificates, &doc.Certificates); err != nil && !errors.Is(err, os.ErrNotExist) {
		return LineageDoc{}, err
	}

	if doc.Certificates == nil {
		doc.Certificates = map[string]model.Certificate{}
	}

	return doc, nil
}

// WriteLineage atomically persists doc to dir.
func WriteLineage(dir string, doc LineageDoc) error {
	if err := writeDocument(dir, docSteps, doc.Steps); err != nil {
		return err
	}

	if err := writeDocument(dir, docSources, doc.Sources); err != nil {
		return err
	}

	return writeDocument(dir, docCertificates, doc.Certificates)
}

// FreezeLineage copies the working lineage directory into a placeholder,
// to be renamed to its final hash-keyed name once the snapshot hash is
// known (snapshot engine phase 3 then phase 5).
func FreezeLineage(workingDir, placeholderDir string) error {
	if err := os.MkdirAll(placeholderDir, 0o755); err != nil {
		return fmt.Errorf("create lineage placeholder: %w", err)
	}

	doc, err := ReadLineage(workingDir)
	if err != nil {
		return err
	}

	return WriteLineage(placeholderDir, doc)
}

// CommitFrozenLineage renames placeholderDir to its final hash-keyed path.
func CommitFrozenLineage(placeholderDir, finalDir string) error {
	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return fmt.Errorf("create lineage parent: %w", err)
	}

	if err := os.Rename(placeholderDir, finalDir); err != nil {
		return fmt.Errorf("commit frozen lineage: %w", err)
	}

	return nil
}

// ClearLineage replaces the working lineage directory's contents with doc
// (empty to just clear, or a frozen snapshot's contents to restore it).
func ClearLineage(workingDir string, doc LineageDoc) error {
	return WriteLineage(workingDir, doc)
}
