package store

import (
	"crypto/sha1" //nolint:gosec // content digest, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dwspace/dwc/internal/model"
)

func manifestDocName(hash string) string { return "snapshot-" + hash }

// CanonicalManifestBytes serialises m with its keys in the fixed order the
// type declares (workspace, params, resources, lineage_dir), sorted params
// and resource lists, so the same logical manifest always produces the
// same bytes regardless of build.
func CanonicalManifestBytes(m model.Manifest) ([]byte, error) {
	resources := append([]model.ResourceState(nil), m.Resources...)
	sort.Slice(resources, func(i, j int) bool { return resources[i].Name < resources[j].Name })

	paramKeys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		paramKeys = append(paramKeys, k)
	}

	sort.Strings(paramKeys)

	var buf []byte

	buf = append(buf, '{')
	buf = appendJSONField(buf, "workspace", m.Workspace, true)
	buf = appendRawField(buf, "params", canonicalParams(m.Params, paramKeys), false)
	buf = appendRawField(buf, "resources", canonicalResources(resources), false)
	buf = appendJSONField(buf, "lineage_dir", m.LineageDir, false)
	buf = append(buf, '}')

	return buf, nil
}

func appendJSONField(buf []byte, key, value string, first bool) []byte {
	if !first {
		buf = append(buf, ',')
	}

	encKey, _ := json.Marshal(key)
	encVal, _ := json.Marshal(value)
	buf = append(buf, encKey...)
	buf = append(buf, ':')
	buf = append(buf, encVal...)

	return buf
}

func appendRawField(buf []byte, key string, raw []byte, first bool) []byte {
	if !first {
		buf = append(buf, ',')
	}

	encKey, _ := json.Marshal(key)
	buf = append(buf, encKey...)
	buf = append(buf, ':')
	buf = append(buf, raw...)

	return buf
}

func canonicalParams(params map[string]string, keys []string) []byte {
	var buf []byte

	buf = append(buf, '{')

	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}

		encKey, _ := json.Marshal(k)
		encVal, _ := json.Marshal(params[k])
		buf = append(buf, encKey...)
		buf = append(buf, ':')
		buf = append(buf, encVal...)
	}

	buf = append(buf, '}')

	return buf
}

func canonicalResources(resources []model.ResourceState) []byte {
	var buf []byte

	buf = append(buf, '[')

	for i, r := range resources {
		if i > 0 {
			buf = append(buf, ',')
		}

		buf = append(buf, '{')
		buf = appendJSONField(buf, "name", r.Name, true)
		buf = appendJSONField(buf, "hash", r.Hash, false)

		if r.Token != "" {
			buf = appendJSONField(buf, "token", r.Token, false)
		}

		buf = append(buf, '}')
	}

	buf = append(buf, ']')

	return buf
}

// HashManifest returns the 40-hex sha1 that identifies m: its snapshot hash.
func HashManifest(m model.Manifest) (string, error) {
	raw, err := CanonicalManifestBytes(m)
	if err != nil {
		return "", err
	}

	sum := sha1.Sum(raw) //nolint:gosec // content digest, not a security boundary

	return hex.EncodeToString(sum[:]), nil
}

// WriteManifest atomically writes a snapshot manifest keyed by its own hash.
func (s *Store) WriteManifest(hash string, m model.Manifest) error {
	return writeDocument(s.SnapshotsDir(), manifestDocName(hash), m)
}

// ReadManifest loads the manifest for hash.
func (s *Store) ReadManifest(hash string) (model.Manifest, error) {
	var m model.Manifest
	if err := readDocument(s.SnapshotsDir(), manifestDocName(hash), &m); err != nil {
		return model.Manifest{}, err
	}

	return m, nil
}

// ManifestExists reports whether a manifest for hash is already on disk.
func (s *Store) ManifestExists(hash string) bool {
	return documentExists(s.SnapshotsDir(), manifestDocName(hash))
}

// History returns the full snapshot history, newest-first.
func (s *Store) History() ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	if err := readDocument(s.SnapshotsDir(), docSnapshotHistory, &entries); err != nil {
		return nil, err
	}

	reversed := make([]model.HistoryEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	return reversed, nil
}

// AppendHistory appends entry to the on-disk history (stored newest-last)
// and returns the updated newest-first slice.
func (s *Store) AppendHistory(entry model.HistoryEntry) ([]model.HistoryEntry, error) {
	var onDisk []model.HistoryEntry
	if err := readDocument(s.SnapshotsDir(), docSnapshotHistory, &onDisk); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	onDisk = append(onDisk, entry)

	if err := writeDocument(s.SnapshotsDir(), docSnapshotHistory, onDisk); err != nil {
		return nil, err
	}

	reversed := make([]model.HistoryEntry, len(onDisk))
	for i, e := range onDisk {
		reversed[len(onDisk)-1-i] = e
	}

	return reversed, nil
}

// StripTag removes tag from whichever history entry currently owns it on
// hostname, so a later AppendHistory can bind that tag to a new entry
// without two entries on the same host claiming it at once. It is a no-op
// if no entry owns the tag.
func (s *Store) StripTag(hostname, tag string) error {
	var onDisk []model.HistoryEntry
	if err := readDocument(s.SnapshotsDir(), docSnapshotHistory, &onDisk); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	changed := false

	for i, e := range onDisk {
		if e.Hostname != hostname {
			continue
		}

		kept := e.Tags[:0]
		for _, t := range e.Tags {
			if t == tag {
				changed = true
				continue
			}

			kept = append(kept, t)
		}

		onDisk[i].Tags = kept
	}

	if !changed {
		return nil
	}

	return writeDocument(s.SnapshotsDir(), docSnapshotHistory, onDisk)
}

// TagOwner returns the snapshot hash bound to tag on the given hostname,
// and whether any entry bound it there.
func TagOwner(history []model.HistoryEntry, hostname, tag string) (string, bool) {
	for _, e := range history {
		if e.Hostname != hostname {
			continue
		}

		for _, t := range e.Tags {
			if t == tag {
				return e.Hash, true
			}
		}
	}

	return "", false
}

// ResolveRef resolves a tag or hash prefix to a full snapshot hash. Tags are
// looked up host-scoped first (per §9's tag-uniqueness design), then
// globally by hash prefix across all hosts recorded in history.
func ResolveRef(history []model.HistoryEntry, hostname, ref string) (string, error) {
	if hash, ok := TagOwner(history, hostname, ref); ok {
		return hash, nil
	}

	var matches []string

	seen := map[string]bool{}

	for _, e := range history {
		if seen[e.Hash] {
			continue
		}

		if len(ref) <= len(e.Hash) && e.Hash[:len(ref)] == ref {
			matches = append(matches, e.Hash)
			seen[e.Hash] = true
		}

		for _, t := range e.Tags {
			if t == ref {
				matches = append(matches, e.Hash)
				seen[e.Hash] = true
			}
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no snapshot matches ref %q", ref)
	default:
		return "", fmt.Errorf("ref %q is ambiguous: matches %v", ref, matches)
	}
}
