package openapi

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	timeType            = reflect.TypeFor[time.Time]()
	durationType        = reflect.TypeFor[time.Duration]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// schemaForType mirrors what option decoding accepts for t: mapstructure
// field names, weak scalar input and text for TextUnmarshaler types.
func schemaForType(t reflect.Type) (map[string]any, error) {
	if t == nil {
		return map[string]any{}, nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return map[string]any{"type": "string", "format": "date-time"}, nil
	case t == durationType:
		return map[string]any{"type": "string", "format": "duration", "x-go-type": "time.Duration"}, nil
	}

	schema, err := schemaForKind(t)
	if err != nil {
		return nil, err
	}
	if t.Kind() != reflect.String && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return map[string]any{"oneOf": []any{map[string]any{"type": "string"}, schema}}, nil
	}
	if t.PkgPath() != "" && t.Kind() != reflect.Struct {
		schema["x-go-type"] = t.String()
	}
	return schema, nil
}

func schemaForKind(t reflect.Type) (map[string]any, error) {
	switch t.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Interface:
		return map[string]any{}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s unsupported", t.Key())
		}
		values, err := schemaForType(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "object", "additionalProperties": values}, nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "format": "byte"}, nil
		}
		items, err := schemaForType(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case reflect.Struct:
		return schemaForStruct(t)
	default:
		return nil, fmt.Errorf("kind %s unsupported", t.Kind())
	}
}

func schemaForStruct(t reflect.Type) (map[string]any, error) {
	properties := map[string]any{}
	var required []any
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("mapstructure"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		child, err := schemaForType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if applyValidateTag(child, field.Tag.Get("validate")) {
			required = append(required, name)
		}
		properties[name] = child
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, nil
}

// applyValidateTag carries the bounds and enums of a validator tag over to
// schema and reports whether the field is required.
func applyValidateTag(schema map[string]any, tag string) bool {
	required := false
	for _, rule := range strings.Split(tag, ",") {
		name, param, _ := strings.Cut(rule, "=")
		switch name {
		case "required":
			required = true
		case "oneof":
			values := make([]any, 0)
			for _, value := range strings.Fields(param) {
				values = append(values, value)
			}
			schema["enum"] = values
		case "gte", "min":
			if n, err := strconv.ParseFloat(param, 64); err == nil && schema["type"] != "string" {
				schema["minimum"] = n
			}
		case "lte", "max":
			if n, err := strconv.ParseFloat(param, 64); err == nil && schema["type"] != "string" {
				schema["maximum"] = n
			}
		}
	}
	return required
}
