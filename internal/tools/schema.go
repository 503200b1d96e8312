package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// generateSchema reflects a Go arg struct into the flat JSON-schema
// object an LLM tool-use call expects, using the same jsonschema tags
// (required, description, enum, minimum/maximum, ...) the reflector
// supports out of the box.
//
// Supported tags on the arg struct's fields:
//   - json:"name" / json:",omitempty" - field name and optionality
//   - jsonschema:"required" - mark the field required
//   - jsonschema:"description=..." - shown to the model
//   - jsonschema:"enum=a|b|c", "minimum=N", "maximum=M" - constraints
func generateSchema[T any]() (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-marshaling schema: %w", err)
	}
	return out, nil
}

// mustSchema generates a tool's input schema from its arg struct or
// panics. Reflection over a fixed struct literal at tool-registration
// time can't fail from bad input, so a failure here means the struct
// itself is malformed — call only from package-level tool constructors.
func mustSchema[T any]() json.RawMessage {
	schema, err := generateSchema[T]()
	if err != nil {
		panic("tools: failed to generate schema: " + err.Error())
	}
	return schema
}
