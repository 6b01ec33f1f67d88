package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type schemaValidator struct {
	schema *jsonschema.Schema
}

// newSchemaValidator compiles a JSON-Schema given as a generic map.
func newSchemaValidator(schemaMap map[string]any) (schemaValidator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return schemaValidator{}, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("row.schema.json", bytes.NewReader(b)); err != nil {
		return schemaValidator{}, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("row.schema.json")
	if err != nil {
		return schemaValidator{}, fmt.Errorf("compile schema: %w", err)
	}
	return schemaValidator{schema: schema}, nil
}

// Validate checks data against the compiled schema.
func (v schemaValidator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
