// Package openapi describes settings documents as OpenAPI components, so
// editors and CI can validate option files before they are loaded.
package openapi

import (
	"fmt"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/pkg/settings"
)

// Generate returns an OpenAPI document whose components describe a settings
// document declaring the options registered on catalog.
func Generate(catalog *settings.Catalog, options ...Option) (map[string]any, error) {
	if catalog == nil {
		return nil, fmt.Errorf("openapi: catalog is nil")
	}
	keys := make([]*opts.OptionKey, 0, len(catalog.OptionNames()))
	for _, name := range catalog.OptionNames() {
		if key, ok := catalog.Option(name); ok {
			keys = append(keys, key)
		}
	}
	return GenerateFor(keys, options...)
}

// GenerateFor is Generate for an explicit option list.
func GenerateFor(keys []*opts.OptionKey, options ...Option) (map[string]any, error) {
	cfg := defaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	optionSchema, err := OptionsSchema(keys)
	if err != nil {
		return nil, err
	}
	optionsRef := ref(cfg.component + "Options")

	property := object(map[string]any{
		"name":    map[string]any{"type": "string", "minLength": 1},
		"element": map[string]any{"type": "string", "enum": []any{"field", "accessor", "method", "getter"}},
		"options": optionsRef,
	}, "name")
	entity := object(map[string]any{
		"entity":     map[string]any{"type": "string", "minLength": 1},
		"options":    optionsRef,
		"properties": map[string]any{"type": "array", "items": ref(cfg.component + "Property")},
	}, "entity")
	root := object(map[string]any{
		"version":  map[string]any{"type": "integer", "enum": []any{1}},
		"global":   optionsRef,
		"entities": map[string]any{"type": "array", "items": ref(cfg.component + "Entity")},
	})

	info := map[string]any{"title": cfg.title, "version": cfg.version}
	if cfg.description != "" {
		info["description"] = cfg.description
	}
	return map[string]any{
		"openapi": cfg.openAPIVersion,
		"info":    info,
		"paths":   map[string]any{},
		"components": map[string]any{
			"schemas": map[string]any{
				cfg.component:              root,
				cfg.component + "Options":  optionSchema,
				cfg.component + "Entity":   entity,
				cfg.component + "Property": property,
			},
		},
	}, nil
}

// OptionsSchema describes the options mapping of one scope: unique options
// take their value, keyed options a mapping from identifier to value.
func OptionsSchema(keys []*opts.OptionKey) (map[string]any, error) {
	properties := map[string]any{}
	for _, key := range keys {
		if key == nil {
			continue
		}
		value, err := schemaForType(key.ValueType())
		if err != nil {
			return nil, fmt.Errorf("openapi: option %s: %w", key.Name(), err)
		}
		if !key.Unique() {
			value = map[string]any{"type": "object", "additionalProperties": value}
		}
		properties[key.Name()] = value
	}
	return object(properties), nil
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		names := make([]any, len(required))
		for i, name := range required {
			names[i] = name
		}
		schema["required"] = names
	}
	return schema
}

func ref(component string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + component}
}
