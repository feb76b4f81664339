package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// Scalars are rendered verbatim, maps and structs as canonical JSON (sorted keys),
// so two requests with the same semantic filters always produce the same key.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from the resource name and args, for example
// SerializeKey("cars", 1, 10, map[string]any{}) returns "cars:1:10:{}".
func (s *defaultKeySerializer) SerializeKey(resource string, args ...any) string {
	if len(args) == 0 {
		return resource
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, resource)

	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}

	return strings.Join(parts, KeySeparator)
}

// serializeValue handles individual argument serialization based on type.
func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		return s.serializeList(rv)
	case reflect.Map:
		// nil and empty filter sets describe the same request
		if rv.Len() == 0 {
			return "{}"
		}
		return s.jsonValue(v)
	case reflect.Struct:
		return s.jsonValue(v)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return fmt.Sprintf("%v", v)
	}

	return s.jsonValue(v)
}

// serializeList renders slice and array elements comma separated inside brackets.
func (s *defaultKeySerializer) serializeList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// jsonValue renders v as JSON; encoding/json sorts map keys which makes the
// output canonical.
func (s *defaultKeySerializer) jsonValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return string(data)
}
