package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaMu    sync.Mutex
	schemaCache = make(map[string]*jsonschema.Schema)
)

// validateSettings checks provider settings against a JSON schema. The
// settings are round-tripped through JSON so numbers have the shape the
// validator expects.
func validateSettings(schema string, settings map[string]any) error {
	if strings.TrimSpace(schema) == "" {
		return nil
	}

	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("invalid settings schema: %w", err)
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("settings are not JSON compatible: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("settings are not JSON compatible: %w", err)
	}

	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func compileSchema(schema string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[schema]; ok {
		return s, nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	const url = "settings.json"
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, err
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	schemaCache[schema] = s
	return s, nil
}
