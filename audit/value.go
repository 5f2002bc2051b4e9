// audit/value.go
package audit

import (
	"fmt"
	"reflect"
	"time"
)

// Size caps for stored change values. Anything larger is reduced to a summary
// string so a single entry cannot balloon the audit store.
const (
	maxObjectKeys   = 50
	maxArrayItems   = 100
	funcPlaceholder = "[function]"
)

// normalizeValue converts an arbitrary document value into its storage-safe
// form: nil, a scalar, an RFC3339 string for times, a summary string for
// oversized structures, or a recursively normalized copy otherwise.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339)
	case map[string]any:
		if len(val) > maxObjectKeys {
			return fmt.Sprintf("%d keys", len(val))
		}
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = normalizeValue(nested)
		}
		return out
	case []any:
		if len(val) > maxArrayItems {
			return fmt.Sprintf("%d items", len(val))
		}
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = normalizeValue(nested)
		}
		return out
	case string, bool, int, int32, int64, float32, float64:
		return val
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return funcPlaceholder
	}
	return fmt.Sprintf("%v", v)
}

// deepEqual compares two document values structurally: times by instant,
// arrays element-wise in order, objects by key set, numbers by value across
// int/float representations. A type mismatch is never equal.
func deepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := asTime(a); ok {
		bt, ok := asTime(b)
		return ok && at.Equal(bt)
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !deepEqual(v, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
