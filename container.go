package opts

// OptionsContext is the read contract shared by containers and merged
// contexts. Absence is never an error: lookups report false and KeyedValues
// returns an empty map.
//
// Prefer the typed helpers (GetUnique, Get, GetAll) over calling these
// methods directly.
type OptionsContext interface {
	UniqueValue(option *OptionKey) (any, bool)
	KeyedValue(option *OptionKey, identifier any) (any, bool)
	KeyedValues(option *OptionKey) map[any]any
}

// Container stores the values of one scope as supplied by one source. It is
// populated during the configuration phase and read-only afterwards.
type Container struct {
	unique map[*OptionKey]any
	keyed  map[*OptionKey]map[any]any
	order  []*OptionKey
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		unique: map[*OptionKey]any{},
		keyed:  map[*OptionKey]map[any]any{},
	}
}

// put stores pair, overwriting a previous unique value or keyed entry.
func (c *Container) put(pair OptionValuePair) {
	option := pair.Option
	if option == nil {
		return
	}
	if option.unique {
		if _, exists := c.unique[option]; !exists {
			c.order = append(c.order, option)
		}
		c.unique[option] = pair.Value
		return
	}
	entries, exists := c.keyed[option]
	if !exists {
		entries = map[any]any{}
		c.keyed[option] = entries
		c.order = append(c.order, option)
	}
	entries[pair.Identifier] = pair.Value
}

// UniqueValue implements OptionsContext.
func (c *Container) UniqueValue(option *OptionKey) (any, bool) {
	if c == nil || option == nil {
		return nil, false
	}
	value, ok := c.unique[option]
	return value, ok
}

// KeyedValue implements OptionsContext.
func (c *Container) KeyedValue(option *OptionKey, identifier any) (any, bool) {
	if c == nil || option == nil {
		return nil, false
	}
	value, ok := c.keyed[option][identifier]
	return value, ok
}

// KeyedValues implements OptionsContext. The returned map is a copy.
func (c *Container) KeyedValues(option *OptionKey) map[any]any {
	if c == nil || option == nil {
		return map[any]any{}
	}
	entries := c.keyed[option]
	out := make(map[any]any, len(entries))
	for key, value := range entries {
		out[key] = value
	}
	return out
}

// Options lists the option keys held by the container in first-set order.
func (c *Container) Options() []*OptionKey {
	if c == nil {
		return nil
	}
	out := make([]*OptionKey, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of option keys held by the container.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

type emptyOptionsContext struct{}

func (emptyOptionsContext) UniqueValue(*OptionKey) (any, bool)     { return nil, false }
func (emptyOptionsContext) KeyedValue(*OptionKey, any) (any, bool) { return nil, false }
func (emptyOptionsContext) KeyedValues(*OptionKey) map[any]any     { return map[any]any{} }

// EmptyOptionsContext holds no options. It is safe to share.
var EmptyOptionsContext OptionsContext = emptyOptionsContext{}

// GetUnique returns the value of option, or the zero value when unset.
func GetUnique[V any](ctx OptionsContext, option UniqueOption[V]) V {
	value, _ := LookupUnique(ctx, option)
	return value
}

// LookupUnique returns the value of option and whether it was set.
func LookupUnique[V any](ctx OptionsContext, option UniqueOption[V]) (V, bool) {
	var zero V
	if ctx == nil {
		return zero, false
	}
	raw, ok := ctx.UniqueValue(option.key)
	if !ok {
		return zero, false
	}
	typed, ok := raw.(V)
	return typed, ok
}

// GetUniqueOr returns the value of option, or fallback when unset.
func GetUniqueOr[V any](ctx OptionsContext, option UniqueOption[V], fallback V) V {
	if value, ok := LookupUnique(ctx, option); ok {
		return value
	}
	return fallback
}

// Get returns the entry registered under key, or the zero value.
func Get[K comparable, V any](ctx OptionsContext, option KeyedOption[K, V], key K) V {
	value, _ := Lookup(ctx, option, key)
	return value
}

// Lookup returns the entry registered under key and whether it exists.
func Lookup[K comparable, V any](ctx OptionsContext, option KeyedOption[K, V], key K) (V, bool) {
	var zero V
	if ctx == nil {
		return zero, false
	}
	raw, ok := ctx.KeyedValue(option.key, key)
	if !ok {
		return zero, false
	}
	typed, ok := raw.(V)
	return typed, ok
}

// GetAll returns every entry of option. The map is empty, never nil, when no
// entry exists.
func GetAll[K comparable, V any](ctx OptionsContext, option KeyedOption[K, V]) map[K]V {
	out := map[K]V{}
	if ctx == nil {
		return out
	}
	for rawKey, rawValue := range ctx.KeyedValues(option.key) {
		key, ok := rawKey.(K)
		if !ok {
			continue
		}
		value, ok := rawValue.(V)
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}
