package store

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dwspace/dwc/internal/errs"
)

// schemaVersion is embedded in every document so a future incompatible
// format change can be detected before unmarshalling into current types.
const schemaVersion = 1

// docEnvelope is how every table is wrapped on disk: a schema version
// alongside the actual payload, so format drift is caught before decode.
type docEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	Data          interface{}     `json:"data"`
}

// schemas maps a table name to the JSON schema its envelope must satisfy.
// Validation happens against the raw envelope bytes, before the payload is
// unmarshalled into Go types, so a corrupt or future-versioned document is
// reported as an inconsistency error rather than a confusing decode panic.
var schemas = map[string]string{
	"envelope": `{
		"type": "object",
		"required": ["schema_version", "data"],
		"properties": {
			"schema_version": {"type": "integer", "minimum": 1, "maximum": 1}
		}
	}`,
}

func validateEnvelope(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schemas["envelope"])
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate document schema: %w", err)
	}

	if !result.Valid() {
		return errs.New(errs.ClassInconsistency, "", "schema-check",
			fmt.Errorf("%w: %v", errs.ErrSchemaDrift, result.Errors()))
	}

	return nil
}
