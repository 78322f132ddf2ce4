package opts

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-datastore-options/layering"
)

// MergedContext is the read-only view handed to datastore drivers. It
// searches its layers strongest first: the most specific scope wins, and
// within one scope the source registered first wins.
type MergedContext struct {
	scope ScopeRef
	chain layering.Chain[*Container]
	cfg   *serviceConfig
}

var _ OptionsContext = (*MergedContext)(nil)

// Scope returns the scope the context was resolved for.
func (m *MergedContext) Scope() ScopeRef {
	if m == nil {
		return ScopeRef{}
	}
	return m.scope
}

// UniqueValue implements OptionsContext.
func (m *MergedContext) UniqueValue(option *OptionKey) (any, bool) {
	if m == nil {
		return nil, false
	}
	value, _, ok := layering.Find(m.chain, func(c *Container) (any, bool) {
		return c.UniqueValue(option)
	})
	return value, ok
}

// KeyedValue implements OptionsContext.
func (m *MergedContext) KeyedValue(option *OptionKey, identifier any) (any, bool) {
	if m == nil {
		return nil, false
	}
	value, _, ok := layering.Find(m.chain, func(c *Container) (any, bool) {
		return c.KeyedValue(option, identifier)
	})
	return value, ok
}

// KeyedValues implements OptionsContext. Entries of all layers are united;
// stronger layers win on key collisions.
func (m *MergedContext) KeyedValues(option *OptionKey) map[any]any {
	if m == nil {
		return map[any]any{}
	}
	layers := m.chain.Ordered()
	maps := make([]map[any]any, 0, len(layers))
	for _, layer := range layers {
		maps = append(maps, layer.Value.KeyedValues(option))
	}
	return layering.MergeKeyed(maps...)
}

// Layers returns the contributing layers, strongest first.
func (m *MergedContext) Layers() []layering.Layer[*Container] {
	if m == nil {
		return nil
	}
	return m.chain.Ordered()
}

// Options lists every option set in any layer, strongest layer first.
func (m *MergedContext) Options() []*OptionKey {
	if m == nil {
		return nil
	}
	var out []*OptionKey
	seen := map[*OptionKey]struct{}{}
	for _, layer := range m.chain.Ordered() {
		for _, option := range layer.Value.Options() {
			if _, ok := seen[option]; ok {
				continue
			}
			seen[option] = struct{}{}
			out = append(out, option)
		}
	}
	return out
}

// Snapshot flattens the effective values into a map keyed by option name.
// Keyed options become map[string]any with stringified identifiers.
func (m *MergedContext) Snapshot() map[string]any {
	out := map[string]any{}
	for _, option := range m.Options() {
		if option.unique {
			if value, ok := m.UniqueValue(option); ok {
				out[option.name] = value
			}
			continue
		}
		entries := m.KeyedValues(option)
		flat := make(map[string]any, len(entries))
		for key, value := range entries {
			flat[fmt.Sprint(key)] = value
		}
		out[option.name] = flat
	}
	return out
}

// Trace reports how each layer contributed to option. For keyed options a
// layer is effective when at least one of its entries is not shadowed by a
// stronger layer; EffectiveKeys lists those entries.
func (m *MergedContext) Trace(option *OptionKey) Trace {
	if m == nil {
		return Trace{Option: option.Name()}
	}
	trace := Trace{Option: option.Name(), Scope: m.Scope().Identifier()}
	effectiveFound := false
	claimed := map[any]struct{}{}
	for _, layer := range m.chain.Ordered() {
		provenance := Provenance{
			Scope:       layer.Scope,
			Source:      layer.Source,
			Specificity: layer.Specificity.String(),
		}
		if option.Unique() {
			value, ok := layer.Value.UniqueValue(option)
			provenance.Value = value
			provenance.Found = ok
			if ok && !effectiveFound {
				provenance.Effective = true
				effectiveFound = true
			}
		} else if entries := layer.Value.KeyedValues(option); len(entries) > 0 {
			provenance.Found = true
			provenance.Value = stringKeys(entries)
			for key := range entries {
				if _, ok := claimed[key]; ok {
					continue
				}
				claimed[key] = struct{}{}
				provenance.EffectiveKeys = append(provenance.EffectiveKeys, fmt.Sprint(key))
			}
			sort.Strings(provenance.EffectiveKeys)
			provenance.Effective = len(provenance.EffectiveKeys) > 0
		}
		trace.Layers = append(trace.Layers, provenance)
	}
	return trace
}

func stringKeys(entries map[any]any) map[string]any {
	out := make(map[string]any, len(entries))
	for key, value := range entries {
		out[fmt.Sprint(key)] = value
	}
	return out
}
