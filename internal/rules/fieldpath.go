// internal/rules/fieldpath.go
package rules

import (
	"reflect"

	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Field path resolution over records.
 *
 * The first segment is read through Record.Field; later segments traverse
 * nested values: map[string]any, []any, nested Records, and (via reflect)
 * any other string-keyed map or slice the caller's parser produced.
 *
 * Resolution fails closed: a missing key, an out-of-range index, or a
 * scalar where the path continues yields ErrFieldNotFound. A field that is
 * present but nil resolves with Found=true and a nil Value; callers decide
 * whether nil counts as missing.
 */

// ResolveResult contains the resolved value.
type ResolveResult struct {
	Value any  // resolved value (nil if not found)
	Found bool // true if path resolved to a value
}

// Resolve traverses record following path segments.
// Returns ErrFieldNotFound if path does not exist on the record.
func Resolve(record types.Record, path []types.PathSegment) (ResolveResult, error) {
	if record == nil || len(path) == 0 {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	head, ok := record.Field(path[0].Key)
	if !ok {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return resolveRecursive(path[1:], head)
}

// ResolveField parses a dotted path and resolves it against record.
func ResolveField(record types.Record, field string) (ResolveResult, error) {
	path, err := types.ParsePath(field)
	if err != nil {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return Resolve(record, path)
}

// resolveRecursive walks the remaining segments below current.
func resolveRecursive(path []types.PathSegment, current any) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{Value: current, Found: true}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case types.Record:
		val, ok := v.Field(seg.Key)
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val)

	case map[string]any:
		val, ok := v[seg.Key]
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val)

	case []any:
		if !seg.IsIndex || seg.Index >= len(v) {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, v[seg.Index])

	case nil:
		// Null value at intermediate position
		return ResolveResult{}, types.ErrFieldNotFound
	}

	return resolveReflect(seg, remaining, current)
}

// resolveReflect handles typed maps and slices ([]float64, map[string]string).
func resolveReflect(seg types.PathSegment, remaining []types.PathSegment, current any) (ResolveResult, error) {
	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		val := rv.MapIndex(reflect.ValueOf(seg.Key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val.Interface())
	case reflect.Slice, reflect.Array:
		if !seg.IsIndex || seg.Index >= rv.Len() {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, rv.Index(seg.Index).Interface())
	default:
		// Scalar value but path continues
		return ResolveResult{}, types.ErrFieldNotFound
	}
}
