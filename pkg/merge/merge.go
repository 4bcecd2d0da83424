// Package merge combines configuration layers into build specifications.
//
// Every struct field declares its merge rule with a `merge` tag:
//
//	overwrite  later non-zero value replaces the earlier one
//	deep       structs, pointers and maps are merged recursively
//	concat     sequences are appended, earlier layers first
//	conflict   two different non-zero values are a ConfigurationError
//
// Untagged fields default to deep for structs, pointers and maps, concat
// for slices and overwrite for everything else. Free-form values
// (map[string]any) merge recursively; a mapping meeting a sequence or a
// scalar at the same key is a ConfigurationError.
//
// A zero value in a typed field means unset, so a later layer cannot
// switch a typed field back to its zero value (false, 0, ""). Values that
// must be reset per layer belong in Extra, where an explicit false or 0
// does replace the earlier value.
//
// Inputs are never mutated and results never share memory with them.
package merge

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dualpack/dualpack/pkg/types"
)

type rule string

const (
	ruleOverwrite rule = "overwrite"
	ruleDeep      rule = "deep"
	ruleConcat    rule = "concat"
	ruleConflict  rule = "conflict"
)

// Merge merges build specification layers left to right
func Merge(layers ...types.BuildSpec) (types.BuildSpec, error) {
	return Layers(layers...)
}

// Layers merges any tagged struct type left to right
func Layers[T any](layers ...T) (T, error) {
	var out T
	dst := reflect.ValueOf(&out).Elem()
	if dst.Kind() != reflect.Struct {
		return out, &ConfigurationError{Reason: fmt.Sprintf("cannot merge layers of kind %s", dst.Kind())}
	}

	for i := range layers {
		if err := mergeStruct(dst, reflect.ValueOf(layers[i]), ""); err != nil {
			var zero T
			return zero, fmt.Errorf("merging layer %d: %w", i, err)
		}
	}
	return out, nil
}

// Clone returns a deep copy of v sharing no maps, slices or pointers
func Clone[T any](v T) T {
	src := reflect.ValueOf(&v).Elem()
	out := reflect.New(src.Type()).Elem()
	out.Set(deepCopy(src))
	return out.Interface().(T)
}

func mergeStruct(dst, src reflect.Value, path string) error {
	t := src.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldPath := joinPath(path, fieldName(field))
		if err := mergeField(dst.Field(i), src.Field(i), ruleFor(field), fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func mergeField(dst, src reflect.Value, r rule, path string) error {
	if src.IsZero() {
		return nil
	}

	switch r {
	case ruleOverwrite:
		dst.Set(deepCopy(src))
		return nil

	case ruleConflict:
		if !dst.IsZero() && !reflect.DeepEqual(dst.Interface(), src.Interface()) {
			return conflictf(path, "layers disagree (%v vs %v)", dst.Interface(), src.Interface())
		}
		dst.Set(deepCopy(src))
		return nil

	case ruleConcat:
		if src.Kind() != reflect.Slice {
			return conflictf(path, "concat rule on non-sequence %s", src.Kind())
		}
		dst.Set(concat(dst, src))
		return nil

	case ruleDeep:
		return mergeDeep(dst, src, path)

	default:
		return conflictf(path, "unknown merge rule %q", r)
	}
}

func mergeDeep(dst, src reflect.Value, path string) error {
	switch src.Kind() {
	case reflect.Struct:
		return mergeStruct(dst, src, path)

	case reflect.Ptr:
		if dst.IsNil() || src.Elem().Kind() != reflect.Struct {
			dst.Set(deepCopy(src))
			return nil
		}
		return mergeStruct(dst.Elem(), src.Elem(), path)

	case reflect.Map:
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(src.Type(), src.Len()))
		}
		iter := src.MapRange()
		for iter.Next() {
			key := iter.Key()
			keyPath := joinPath(path, fmt.Sprint(key.Interface()))
			existing := dst.MapIndex(key)
			if !existing.IsValid() {
				dst.SetMapIndex(key, deepCopy(iter.Value()))
				continue
			}
			merged, err := mergeDynamic(existing, iter.Value(), keyPath)
			if err != nil {
				return err
			}
			if !merged.IsValid() {
				merged = reflect.Zero(dst.Type().Elem())
			}
			dst.SetMapIndex(key, merged)
		}
		return nil

	case reflect.Slice:
		dst.Set(concat(dst, src))
		return nil

	default:
		dst.Set(deepCopy(src))
		return nil
	}
}

type shape int

const (
	shapeNil shape = iota
	shapeScalar
	shapeMapping
	shapeSequence
	shapeStruct
)

func (s shape) String() string {
	switch s {
	case shapeMapping:
		return "mapping"
	case shapeSequence:
		return "sequence"
	case shapeStruct:
		return "struct"
	case shapeNil:
		return "nil"
	default:
		return "scalar"
	}
}

func shapeOf(v reflect.Value) shape {
	if !v.IsValid() {
		return shapeNil
	}
	switch v.Kind() {
	case reflect.Map:
		return shapeMapping
	case reflect.Slice, reflect.Array:
		return shapeSequence
	case reflect.Struct:
		return shapeStruct
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return shapeNil
		}
		return shapeOf(v.Elem())
	default:
		return shapeScalar
	}
}

func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// mergeDynamic merges two values found under the same map key. Their
// static type may be an interface, so the shape decides the rule.
func mergeDynamic(a, b reflect.Value, path string) (reflect.Value, error) {
	sa, sb := shapeOf(a), shapeOf(b)
	if sb == shapeNil {
		return deepCopy(a), nil
	}
	if sa == shapeNil {
		return deepCopy(b), nil
	}
	if sa != sb {
		return reflect.Value{}, conflictf(path, "cannot merge %s with %s", sa, sb)
	}

	ua, ub := unwrap(a), unwrap(b)
	switch sb {
	case shapeMapping:
		return mergeMappings(ua, ub, path)

	case shapeSequence:
		if ua.Type() == ub.Type() && ua.Kind() == reflect.Slice {
			return concat(ua, ub), nil
		}
		out := make([]any, 0, ua.Len()+ub.Len())
		for i := 0; i < ua.Len(); i++ {
			out = append(out, deepCopy(ua.Index(i)).Interface())
		}
		for i := 0; i < ub.Len(); i++ {
			out = append(out, deepCopy(ub.Index(i)).Interface())
		}
		return reflect.ValueOf(out), nil

	case shapeStruct:
		if ua.Type() != ub.Type() {
			return reflect.Value{}, conflictf(path, "cannot merge %s with %s", ua.Type(), ub.Type())
		}
		out := reflect.New(ua.Type()).Elem()
		out.Set(deepCopy(ua))
		if err := mergeStruct(out, ub, path); err != nil {
			return reflect.Value{}, err
		}
		return out, nil

	default:
		return deepCopy(b), nil
	}
}

func mergeMappings(a, b reflect.Value, path string) (reflect.Value, error) {
	if a.Type() == b.Type() {
		out := deepCopy(a)
		iter := b.MapRange()
		for iter.Next() {
			key := iter.Key()
			keyPath := joinPath(path, fmt.Sprint(key.Interface()))
			existing := out.MapIndex(key)
			if !existing.IsValid() {
				out.SetMapIndex(key, deepCopy(iter.Value()))
				continue
			}
			merged, err := mergeDynamic(existing, iter.Value(), keyPath)
			if err != nil {
				return reflect.Value{}, err
			}
			if !merged.IsValid() {
				merged = reflect.Zero(out.Type().Elem())
			}
			if !merged.Type().AssignableTo(out.Type().Elem()) {
				return reflect.Value{}, conflictf(keyPath, "merged value of type %s does not fit %s", merged.Type(), out.Type().Elem())
			}
			out.SetMapIndex(key, merged)
		}
		return out, nil
	}

	// Differently typed mappings widen to map[string]any.
	out := make(map[string]any, a.Len()+b.Len())
	iter := a.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = deepCopy(iter.Value()).Interface()
	}
	iter = b.MapRange()
	for iter.Next() {
		key := fmt.Sprint(iter.Key().Interface())
		existing, ok := out[key]
		if !ok {
			out[key] = deepCopy(iter.Value()).Interface()
			continue
		}
		merged, err := mergeDynamic(reflect.ValueOf(existing), iter.Value(), joinPath(path, key))
		if err != nil {
			return reflect.Value{}, err
		}
		if merged.IsValid() {
			out[key] = merged.Interface()
		} else {
			out[key] = nil
		}
	}
	return reflect.ValueOf(out), nil
}

func concat(a, b reflect.Value) reflect.Value {
	out := reflect.MakeSlice(b.Type(), 0, a.Len()+b.Len())
	for i := 0; i < a.Len(); i++ {
		out = reflect.Append(out, deepCopy(a.Index(i)))
	}
	for i := 0; i < b.Len(); i++ {
		out = reflect.Append(out, deepCopy(b.Index(i)))
	}
	return out
}

func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem()))
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				out.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out

	default:
		return v
	}
}

func ruleFor(field reflect.StructField) rule {
	if tag, ok := field.Tag.Lookup("merge"); ok && tag != "" {
		return rule(tag)
	}
	switch field.Type.Kind() {
	case reflect.Struct, reflect.Ptr, reflect.Map:
		return ruleDeep
	case reflect.Slice:
		return ruleConcat
	default:
		return ruleOverwrite
	}
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
