package llm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kbukum/llmstream/document"
)

// SetExtra copies extra into the request body, in key order. Extra keys
// replace fields the dialect already set.
func SetExtra(body *document.Value, extra map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		v, err := document.FromAny(extra[k])
		if err != nil {
			return fmt.Errorf("llm: extra field %q: %w", k, err)
		}
		body.Set(k, v)
	}
	return nil
}

// ArgumentsText returns tool-call arguments as JSON text. Providers send
// either a string of JSON or a JSON object.
func ArgumentsText(v *document.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if v.IsNull() {
		return ""
	}
	return v.String()
}

// SchemaValue converts a JSON Schema map to a document. Nil yields an empty
// object schema.
func SchemaValue(schema map[string]any) (*document.Value, error) {
	if schema == nil {
		return document.MustParse(`{"type":"object","properties":{}}`), nil
	}
	return document.FromAny(schema)
}
