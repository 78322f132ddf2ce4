package opts

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-datastore-options/layering"
)

// FieldDescriptor describes one effective option value: its path, the
// declared Go type of the option and the layer that supplied it.
type FieldDescriptor struct {
	Path   string
	Type   string
	Source string
	Scope  string
}

// Describe lists the effective options of ctx sorted by path. Keyed options
// expand to one path per identifier ("namedQuery.foo"), each attributed to
// the layer the entry came from.
func Describe(ctx *MergedContext) []FieldDescriptor {
	out := []FieldDescriptor{}
	if ctx == nil {
		return out
	}
	for _, option := range ctx.Options() {
		typeName := fmt.Sprint(option.ValueType())
		if option.Unique() {
			_, layer, ok := layering.Find(ctx.chain, func(c *Container) (any, bool) {
				return c.UniqueValue(option)
			})
			if ok {
				out = append(out, describeLayer(option.Name(), typeName, layer))
			}
			continue
		}
		for key := range ctx.KeyedValues(option) {
			_, layer, ok := layering.Find(ctx.chain, func(c *Container) (any, bool) {
				return c.KeyedValue(option, key)
			})
			if ok {
				out = append(out, describeLayer(fmt.Sprintf("%s.%v", option.Name(), key), typeName, layer))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func describeLayer(path, typeName string, layer layering.Layer[*Container]) FieldDescriptor {
	return FieldDescriptor{Path: path, Type: typeName, Source: layer.Source, Scope: layer.Scope}
}
