// Package blobstore is the content-addressed blob store shared by backends
// whose restore has to re-materialise files from a local history rather
// than check them out of a repository: local-files, and the external-sync
// backend when the local side is the sync master. Blobs are lz4-compressed
// and named by their content hash; a catalogue document maps each
// snapshot's tree hash to the per-file hashes that made it up.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/dwspace/dwc/internal/hashtree"
	"github.com/dwspace/dwc/pkg/persist"
)

const (
	catalogueBasename = "catalogue"
	blobsSubdir       = "blobs"
	blobExtension     = ".lz4"
)

type catalogueDoc struct {
	Snapshots map[string]map[string]string `json:"snapshots"`
	Last      string                       `json:"last,omitempty"`
}

// Store is a blob store rooted at dir.
type Store struct {
	dir string
}

// New returns a store rooted at dir, created on first use.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Capture writes every file named in perFile into the content store, under
// its own content hash, skipping files already captured under that hash.
func (s *Store) Capture(root string, perFile map[string]hashtree.Hash) error {
	blobsDir := filepath.Join(s.dir, blobsSubdir)
	if err := os.MkdirAll(blobsDir, 0o755); err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}

	for relpath, h := range perFile {
		dst := filepath.Join(blobsDir, string(h)+blobExtension)
		if _, err := os.Stat(dst); err == nil {
			continue
		}

		if err := writeBlob(dst, filepath.Join(root, filepath.FromSlash(relpath)), relpath); err != nil {
			return err
		}
	}

	return nil
}

func writeBlob(dst, src, relpath string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", relpath, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".blob-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()

	zw := lz4.NewWriter(tmp)

	_, copyErr := io.Copy(zw, in)
	closeZErr := zw.Close()
	closeErr := tmp.Close()

	if copyErr != nil || closeZErr != nil || closeErr != nil {
		os.Remove(tmpPath)

		switch {
		case copyErr != nil:
			return fmt.Errorf("compress %s: %w", relpath, copyErr)
		case closeZErr != nil:
			return fmt.Errorf("finish compressing %s: %w", relpath, closeZErr)
		default:
			return fmt.Errorf("close temp blob for %s: %w", relpath, closeErr)
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("store blob for %s: %w", relpath, err)
	}

	return nil
}

// Materialize writes every (relpath, fileHash) pair in entries to root,
// decompressing from the content store, then removes local files under
// root that aren't named in entries.
func (s *Store) Materialize(root string, entries map[string]string) error {
	for relpath, fileHash := range entries {
		content, err := s.readBlob(fileHash)
		if err != nil {
			return err
		}

		full := filepath.Join(root, filepath.FromSlash(relpath))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", relpath, err)
		}

		if err := os.WriteFile(full, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", relpath, err)
		}
	}

	return pruneExtra(root, entries)
}

func pruneExtra(root string, wanted map[string]string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		rel = filepath.ToSlash(rel)

		if _, ok := wanted[rel]; !ok {
			return os.Remove(path)
		}

		return nil
	})
}

func (s *Store) readBlob(fileHash string) ([]byte, error) {
	path := filepath.Join(s.dir, blobsSubdir, fileHash+blobExtension)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", fileHash, err)
	}
	defer f.Close()

	content, err := io.ReadAll(lz4.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decompress blob %s: %w", fileHash, err)
	}

	return content, nil
}

// Snapshots returns every recorded snapshot's per-file hash map, keyed by
// tree hash.
func (s *Store) Snapshots() (map[string]map[string]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	return doc.Snapshots, nil
}

// RecordSnapshot persists perFile as the catalogue entry for treeHash and
// marks treeHash as the last recorded state, for PrecheckRestore's dirty
// check.
func (s *Store) RecordSnapshot(treeHash string, perFile map[string]hashtree.Hash) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	entry := make(map[string]string, len(perFile))
	for relpath, h := range perFile {
		entry[relpath] = string(h)
	}

	doc.Snapshots[treeHash] = entry
	doc.Last = treeHash

	return persist.SaveStateAtomic(s.dir, catalogueBasename, persist.NewJSONCodec(), &doc)
}

// Last returns the tree hash most recently passed to RecordSnapshot, and
// false if nothing has been recorded yet.
func (s *Store) Last() (string, bool, error) {
	doc, err := s.load()
	if err != nil {
		return "", false, err
	}

	return doc.Last, doc.Last != "", nil
}

func (s *Store) load() (catalogueDoc, error) {
	var doc catalogueDoc

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return doc, fmt.Errorf("create blob dir: %w", err)
	}

	if _, statErr := os.Stat(filepath.Join(s.dir, catalogueBasename+".json")); errors.Is(statErr, os.ErrNotExist) {
		return catalogueDoc{Snapshots: map[string]map[string]string{}}, nil
	}

	if err := persist.LoadState(s.dir, catalogueBasename, persist.NewJSONCodec(), &doc); err != nil {
		return doc, err
	}

	if doc.Snapshots == nil {
		doc.Snapshots = map[string]map[string]string{}
	}

	return doc, nil
}
