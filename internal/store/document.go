package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dwspace/dwc/pkg/persist"
)

// readDocument loads a schema-validated envelope from dir/name.json into
// out. It returns os.ErrNotExist (wrapped) when the file is absent, so
// callers can distinguish "never created" from "corrupt".
func readDocument(dir, name string, out interface{}) error {
	path := filepath.Join(dir, name+".json")

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, os.ErrNotExist)
		}

		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := validateEnvelope(raw); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	var env docEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unmarshal %s envelope: %w", name, err)
	}

	payload, err := json.Marshal(env.Data)
	if err != nil {
		return fmt.Errorf("re-marshal %s payload: %w", name, err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", name, err)
	}

	return nil
}

// writeDocument atomically writes value as a schema-versioned envelope to
// dir/name.json, creating dir if needed.
func writeDocument(dir, name string, value interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	env := docEnvelope{SchemaVersion: schemaVersion, Data: value}
	codec := persist.NewJSONCodec()

	if err := persist.SaveStateAtomic(dir, name, codec, env); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

func documentExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name+".json"))

	return err == nil
}
