// Package settings loads option declarations from YAML documents such as
//
//	version: 1
//	global:
//	  readPreference: NEAREST
//	entities:
//	  - entity: Order
//	    options:
//	      associationStorage: ASSOCIATION_DOCUMENT
//	    properties:
//	      - name: items
//	        element: field
//	        options:
//	          writeConcern: {w: 2, journal: true}
//
// Keyed options take a mapping from identifier to value. Settings usually
// feed a low precedence source so code and annotations can override them.
package settings

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/internal/hydrate"
)

// SourceName is the name of sources built from settings.
const SourceName = "settings"

// Document is a decoded settings document.
type Document struct {
	Version  int              `mapstructure:"version" validate:"omitempty,eq=1"`
	Global   map[string]any   `mapstructure:"global"`
	Entities []EntitySettings `mapstructure:"entities" validate:"dive"`
}

// EntitySettings declares the options of one entity and its properties.
type EntitySettings struct {
	Entity     string             `mapstructure:"entity" validate:"required"`
	Options    map[string]any     `mapstructure:"options"`
	Properties []PropertySettings `mapstructure:"properties" validate:"dive"`
}

// PropertySettings declares the options of one property.
type PropertySettings struct {
	Name    string         `mapstructure:"name" validate:"required"`
	Element string         `mapstructure:"element" validate:"omitempty,oneof=field accessor method getter"`
	Options map[string]any `mapstructure:"options"`
}

var documentValidator = validator.New()

// Parse decodes a YAML settings document.
func Parse(data []byte) (*Document, error) {
	payload := map[string]any{}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("settings: parse yaml: %w", err)
	}
	decoder := hydrate.NewDecoder[Document](
		hydrate.WithErrorUnused[Document](),
		hydrate.WithValidator[Document](documentValidator),
	)
	doc, err := decoder.Decode(hydrate.Context{Source: SourceName}, payload)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return &doc, nil
}

// Load reads and parses the settings document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	return Parse(data)
}

// Apply declares every setting of doc on cfg, resolving names through
// catalog. It stops at the first failure, which is also recorded on cfg.
func (doc *Document) Apply(cfg *opts.ConfigurationContext, catalog *Catalog) error {
	if err := cfg.Err(); err != nil {
		return err
	}
	if err := declare(cfg, catalog, opts.GlobalScope(), opts.ElementType, doc.Global); err != nil {
		return err
	}
	for _, entitySettings := range doc.Entities {
		t, ok := catalog.Entity(entitySettings.Entity)
		if !ok {
			return fail(cfg, opts.ScopeRef{}, entitySettings.Entity, "", fmt.Errorf("%w: %q is not registered", opts.ErrUnknownEntity, entitySettings.Entity))
		}
		entity := opts.EntityScope(t)
		if err := declare(cfg, catalog, entity, opts.ElementType, entitySettings.Options); err != nil {
			return err
		}
		for _, property := range entitySettings.Properties {
			kind, err := opts.ParseElementKind(property.Element)
			if err != nil {
				return fail(cfg, entity, property.Name, "", err)
			}
			if err := opts.ValidateProperty(t, property.Name, kind); err != nil {
				return fail(cfg, entity, kind.String()+" "+property.Name, "", err)
			}
			scope := opts.PropertyScope(t, property.Name)
			if err := declare(cfg, catalog, scope, kind, property.Options); err != nil {
				return err
			}
		}
	}
	return nil
}

// Source applies doc to a fresh context named SourceName and returns the
// frozen result as a source.
func (doc *Document) Source(catalog *Catalog, options ...opts.ContextOption) (*opts.ProgrammaticSource, error) {
	appendable := opts.NewAppendableConfigurationContext(append([]opts.ContextOption{opts.WithContextName(SourceName)}, options...)...)
	if err := doc.Apply(opts.NewConfigurationContext(appendable), catalog); err != nil {
		return nil, err
	}
	appendable.Freeze()
	return opts.NewProgrammaticSource(appendable), nil
}

func declare(cfg *opts.ConfigurationContext, catalog *Catalog, scope opts.ScopeRef, element opts.ElementKind, values map[string]any) error {
	for _, name := range sortedKeys(values) {
		option, ok := catalog.Option(name)
		if !ok {
			return fail(cfg, scope, element.String(), name, fmt.Errorf("%w: %q is not registered", opts.ErrUnknownOption, name))
		}
		pairs, err := decodePairs(option, values[name])
		if err != nil {
			return fail(cfg, scope, element.String(), name, err)
		}
		for _, pair := range pairs {
			cfg.Add(scope, element, pair)
			if err := cfg.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodePairs(option *opts.OptionKey, raw any) ([]opts.OptionValuePair, error) {
	if option.Unique() {
		pair, err := opts.DecodePair(option, nil, raw)
		if err != nil {
			return nil, err
		}
		return []opts.OptionValuePair{pair}, nil
	}
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: keyed option %s expects a mapping, got %T", opts.ErrInvalidValue, option.Name(), raw)
	}
	pairs := make([]opts.OptionValuePair, 0, len(entries))
	for _, identifier := range sortedKeys(entries) {
		pair, err := opts.DecodePair(option, identifier, entries[identifier])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// fail records err on cfg so the chain stays consistent and returns the
// recorded error.
func fail(cfg *opts.ConfigurationContext, scope opts.ScopeRef, element, option string, err error) error {
	cfg.Fail(&opts.ConfigurationError{
		Scope:   scopeLabel(scope),
		Element: element,
		Option:  option,
		Err:     err,
	})
	return cfg.Err()
}

func scopeLabel(scope opts.ScopeRef) string {
	if scope.Kind == opts.ScopeUnknown {
		return ""
	}
	return scope.Identifier()
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
