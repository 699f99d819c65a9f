package extraction

import (
	"fmt"
)

// UnwrapRunData reduces an extraction result to the invoice object. A list
// yields its first element and an object carrying "data" yields that field.
func UnwrapRunData(result any) (map[string]any, error) {
	run := result
	if list, ok := run.([]any); ok {
		if len(list) == 0 {
			return nil, ErrEmptyResult
		}
		run = list[0]
	}

	data := run
	if obj, ok := run.(map[string]any); ok {
		if inner, has := obj["data"]; has {
			data = inner
		}
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w (got %s)", ErrNotAnObject, kind(data))
	}
	return obj, nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	default:
		return "number"
	}
}
