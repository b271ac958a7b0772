package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// decodeHCL reads top-level HCL attributes. Nested configuration is
// written as object expressions:
//
//	providers = {
//	  audio = { default = { type = "openai", api_key = "$${OPENAI_API_KEY}" } }
//	}
//
// HCL treats ${...} as template interpolation, so environment placeholders
// are escaped as $${NAME} and reach the resolver as plain strings.
func decodeHCL(filename string, data []byte) (map[string]any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		// No evaluation context: HCL variables and functions are unsupported.
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %s: %s", name, diags.Error())
		}

		encoded, err := ctyjson.Marshal(val, val.Type())
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}

		dec := json.NewDecoder(strings.NewReader(string(encoded)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
