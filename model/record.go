// model/record.go
package model

import "fmt"

// Record is a schema-less document stored in a named container. Values are
// JSON-shaped: scalars, []any and nested map[string]any.
type Record map[string]any

// ID returns the record identifier normalized to a string. Identifiers may
// arrive as strings, ints or floats depending on the storage driver.
func (r Record) ID() string {
	v, ok := r["id"]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprintf("%v", id)
	}
}

// Clone returns a deep copy so callers can hold a before-state without the
// mutation pipeline writing through it.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = cloneValue(nested)
		}
		return out
	case Record:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}
