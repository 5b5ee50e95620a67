package runtime

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Snapshot converts v into a JSON-safe map. Structs become objects keyed by their json tags,
// maps and slices recurse, and any leaf JSON cannot represent is stringified.
// A value that is not object-like is returned under the "value" key.
func Snapshot(v any) map[string]any {
	out := snapshotValue(reflect.ValueOf(v), 0)
	if m, ok := out.(map[string]any); ok {
		return m
	}
	if out == nil {
		return map[string]any{}
	}
	return map[string]any{"value": out}
}

const maxSnapshotDepth = 32

var (
	timeType          = reflect.TypeOf(time.Time{})
	errorType         = reflect.TypeOf((*error)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func snapshotValue(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxSnapshotDepth {
		return fmt.Sprint(v.Interface())
	}

	if v.Type() == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339Nano)
	}
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && v.CanInterface() {
		if v.Type().Implements(errorType) {
			return v.Interface().(error).Error()
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Pointer && v.Type().Implements(errorType) {
			return v.Interface().(error).Error()
		}
		return snapshotValue(v.Elem(), depth+1)
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.String:
		return v.String()
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = snapshotValue(iter.Value(), depth+1)
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes())
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = snapshotValue(v.Index(i), depth+1)
		}
		return out
	case reflect.Struct:
		if v.CanInterface() && v.Type().Implements(textMarshalerType) {
			if b, err := v.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
				return string(b)
			}
		}
		return snapshotStruct(v, depth)
	default:
		if v.CanInterface() {
			return fmt.Sprint(v.Interface())
		}
		return v.String()
	}
}

func snapshotStruct(v reflect.Value, depth int) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if field.Anonymous && fv.Kind() == reflect.Struct && !hasJSONTag(field) {
			for k, val := range snapshotStruct(fv, depth+1) {
				out[k] = val
			}
			continue
		}
		out[name] = snapshotValue(fv, depth+1)
	}
	return out
}

func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func hasJSONTag(f reflect.StructField) bool {
	_, ok := f.Tag.Lookup("json")
	return ok
}
