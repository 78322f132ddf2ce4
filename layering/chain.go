// Package layering orders option layers by precedence and merges their
// values strongest first.
package layering

import (
	"fmt"
	"slices"
)

// Specificity ranks the scope a layer was read from. Higher values are more
// specific and win over lower ones.
type Specificity int

const (
	// SpecificityUnknown guards against misconfiguration so call sites can
	// detect missing metadata.
	SpecificityUnknown Specificity = iota
	// SpecificityGlobal is the weakest scope.
	SpecificityGlobal
	// SpecificityParent is an embedded (super) entity.
	SpecificityParent
	// SpecificityEntity is the entity itself.
	SpecificityEntity
	// SpecificityProperty is a property of the entity.
	SpecificityProperty
)

func (s Specificity) String() string {
	switch s {
	case SpecificityGlobal:
		return "global"
	case SpecificityParent:
		return "parent"
	case SpecificityEntity:
		return "entity"
	case SpecificityProperty:
		return "property"
	default:
		return "unknown"
	}
}

// Layer is one contribution to a merged view.
type Layer[T any] struct {
	Scope       string      // scope identifier the layer was read from
	Source      string      // name of the source that produced it
	Specificity Specificity // scope rank
	Depth       int         // distance within the same specificity (parent entities)
	Rank        int         // source precedence, lower wins
	Value       T
}

// Label identifies the layer in traces.
func (l Layer[T]) Label() string {
	return fmt.Sprintf("%s@%s", l.Source, l.Scope)
}

// Chain is an ordered sequence of layers from strongest to weakest.
type Chain[T any] struct {
	ordered []Layer[T]
}

// NewChain sorts layers strongest first: higher specificity, then smaller
// depth, then smaller source rank. Layers with unknown specificity are
// dropped, as are repeated (scope, rank) pairs after the first occurrence.
func NewChain[T any](layers ...Layer[T]) Chain[T] {
	filtered := make([]Layer[T], 0, len(layers))
	type identity struct {
		scope string
		rank  int
	}
	seen := map[identity]struct{}{}
	for _, layer := range layers {
		if layer.Specificity == SpecificityUnknown {
			continue
		}
		id := identity{scope: layer.Scope, rank: layer.Rank}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, layer)
	}

	slices.SortStableFunc(filtered, func(a, b Layer[T]) int {
		if a.Specificity != b.Specificity {
			if a.Specificity > b.Specificity {
				return -1
			}
			return 1
		}
		if a.Depth != b.Depth {
			return a.Depth - b.Depth
		}
		return a.Rank - b.Rank
	})
	return Chain[T]{ordered: filtered}
}

// Ordered returns the layering sequence from strongest (index 0) to weakest.
func (c Chain[T]) Ordered() []Layer[T] {
	out := make([]Layer[T], len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of layers.
func (c Chain[T]) Len() int {
	return len(c.ordered)
}

// Find returns the first layer, strongest first, for which lookup reports a
// value.
func Find[T, V any](c Chain[T], lookup func(T) (V, bool)) (V, Layer[T], bool) {
	for _, layer := range c.ordered {
		if value, ok := lookup(layer.Value); ok {
			return value, layer, true
		}
	}
	var zero V
	return zero, Layer[T]{}, false
}

// MergeKeyed unions maps ordered strongest first. On key collisions the
// stronger map wins. The result is never nil.
func MergeKeyed[K comparable, V any](layers ...map[K]V) map[K]V {
	out := map[K]V{}
	for i := len(layers) - 1; i >= 0; i-- {
		for key, value := range layers[i] {
			out[key] = value
		}
	}
	return out
}
