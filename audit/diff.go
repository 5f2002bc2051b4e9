// audit/diff.go
package audit

import (
	"fmt"
	"sort"
)

// Housekeeping fields maintained by the record store itself. They change on
// every write and carry no audit value.
var reservedFields = map[string]struct{}{
	"id":        {},
	"createdAt": {},
	"updatedAt": {},
}

// Diff computes the ordered field-level changes between two document states.
// A nil oldDoc means creation (every retained field reported against a nil
// old value), a nil newDoc means deletion (the inverse). Field names in
// excluded are dropped at every nesting level, as are the reserved
// housekeeping fields. The result is deterministic for identical inputs: the
// old document's keys are walked in sorted order, then keys only present in
// the new document.
func Diff(oldDoc, newDoc map[string]any, excluded map[string]struct{}) []FieldChange {
	if oldDoc == nil && newDoc == nil {
		return nil
	}
	return diffObjects(oldDoc, newDoc, "", excluded)
}

func diffObjects(oldObj, newObj map[string]any, prefix string, excluded map[string]struct{}) []FieldChange {
	var changes []FieldChange
	for _, name := range unionKeys(oldObj, newObj) {
		if _, reserved := reservedFields[name]; reserved {
			continue
		}
		if _, skip := excluded[name]; skip {
			continue
		}
		path := prefix + name
		changes = append(changes, diffValue(oldObj[name], newObj[name], name, path, excluded)...)
	}
	return changes
}

func diffValue(oldV, newV any, field, path string, excluded map[string]struct{}) []FieldChange {
	if deepEqual(oldV, newV) {
		return nil
	}

	// Structural recursion only applies when both sides agree on shape. A
	// mapping on one side and an array or scalar on the other is a leaf
	// replacement, recorded verbatim.
	if oldMap, ok := oldV.(map[string]any); ok {
		if newMap, ok := newV.(map[string]any); ok {
			return diffObjects(oldMap, newMap, path+".", excluded)
		}
	}
	if oldArr, ok := oldV.([]any); ok {
		if newArr, ok := newV.([]any); ok {
			return diffArrays(oldArr, newArr, field, path, excluded)
		}
	}

	return []FieldChange{{
		Field:    field,
		Path:     path,
		OldValue: normalizeValue(oldV),
		NewValue: normalizeValue(newV),
	}}
}

func diffArrays(oldArr, newArr []any, field, path string, excluded map[string]struct{}) []FieldChange {
	var changes []FieldChange

	if len(oldArr) != len(newArr) {
		changes = append(changes, FieldChange{
			Field:    field + ".length",
			Path:     path + ".length",
			OldValue: len(oldArr),
			NewValue: len(newArr),
		})
	}

	n := len(oldArr)
	if len(newArr) > n {
		n = len(newArr)
	}
	for i := 0; i < n; i++ {
		var oldV, newV any
		if i < len(oldArr) {
			oldV = oldArr[i]
		}
		if i < len(newArr) {
			newV = newArr[i]
		}
		if deepEqual(oldV, newV) {
			continue
		}
		if oldMap, ok := oldV.(map[string]any); ok {
			if newMap, ok := newV.(map[string]any); ok {
				changes = append(changes, diffObjects(oldMap, newMap, fmt.Sprintf("%s[%d].", path, i), excluded)...)
				continue
			}
		}
		changes = append(changes, FieldChange{
			Field:    fmt.Sprintf("%s[%d]", field, i),
			Path:     fmt.Sprintf("%s[%d]", path, i),
			OldValue: normalizeValue(oldV),
			NewValue: normalizeValue(newV),
		})
	}
	return changes
}

// unionKeys lists the old document's keys in sorted order followed by keys
// only the new document has, also sorted. Sorting pins down Go's randomized
// map iteration so identical inputs always produce identical output order.
func unionKeys(oldObj, newObj map[string]any) []string {
	oldKeys := make([]string, 0, len(oldObj))
	for k := range oldObj {
		oldKeys = append(oldKeys, k)
	}
	sort.Strings(oldKeys)

	newOnly := make([]string, 0, len(newObj))
	for k := range newObj {
		if _, present := oldObj[k]; !present {
			newOnly = append(newOnly, k)
		}
	}
	sort.Strings(newOnly)

	return append(oldKeys, newOnly...)
}
