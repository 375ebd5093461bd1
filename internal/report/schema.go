package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed report.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("report.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load report schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("report.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile report schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Validate checks a serialized report against the embedded schema.
func Validate(b []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("report does not match schema: %w", err)
	}
	return nil
}

// Schema returns the embedded JSON Schema document.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}
