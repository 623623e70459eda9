// Package metricsextract pulls numeric metrics out of JSON files produced by
// a results resource, for display in history/report output. It is
// deliberately best-effort: a malformed or non-JSON file is skipped rather
// than failing the snapshot that triggered the scan.
package metricsextract

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxKeys caps how many metric keys a single scan reports, so one
// pathologically wide results file can't balloon a history entry.
const maxKeys = 256

// Scan walks root looking for ".json"/".jsonl" files and flattens their
// top-level numeric fields into dotted keys prefixed by the file's path
// relative to root. Errors opening, walking or parsing an individual entry
// are swallowed, including an unreadable root, which yields an empty map.
func Scan(root string) (map[string]float64, error) {
	out := map[string]float64{}

	err := filepath.Walk(root, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable entries, keep scanning
		}
		if info.IsDir() {
			if info.Name() == "snapshots" || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if len(out) >= maxKeys {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".jsonl" {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		extractFile(path, rel, out)

		return nil
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

// extractFile streams one file's top-level JSON object(s) and copies any
// numeric leaf fields into out, keyed by "<file>.<field>". Parse failures are
// silently dropped: a results file is user-controlled and often not the
// tidy flat metrics object a training script intended to write.
func extractFile(path, label string, out map[string]float64) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	dec := json.NewDecoder(f)

	for {
		if len(out) >= maxKeys {
			return
		}

		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return
			}
			// Malformed JSON after a well-formed prefix (or non-object
			// top level): stop on this file, keep whatever was already
			// collected from earlier lines.
			return
		}

		flattenInto(label, doc, out)
	}
}

// flattenInto copies numeric and numeric-string leaves of doc into out,
// recursing one level into nested objects so a results file shaped like
// {"metrics": {"accuracy": 0.91}} still surfaces "accuracy".
func flattenInto(prefix string, doc map[string]any, out map[string]float64) {
	for key, val := range doc {
		if len(out) >= maxKeys {
			return
		}

		dotted := prefix + "." + key

		switch v := val.(type) {
		case float64:
			out[dotted] = v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[dotted] = f
			}
		case map[string]any:
			for nestedKey, nestedVal := range v {
				if len(out) >= maxKeys {
					return
				}

				switch nv := nestedVal.(type) {
				case float64:
					out[prefix+"."+nestedKey] = nv
				case string:
					if f, err := strconv.ParseFloat(nv, 64); err == nil {
						out[prefix+"."+nestedKey] = f
					}
				}
			}
		}
	}
}
