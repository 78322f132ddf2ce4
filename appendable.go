package opts

import (
	"context"
	"fmt"

	"github.com/goliatone/go-datastore-options/pkg/activity"
)

// Entry is one declaration recorded by an AppendableConfigurationContext.
type Entry struct {
	Scope   ScopeRef
	Element ElementKind
	Pair    OptionValuePair
}

// ContextOption configures an AppendableConfigurationContext.
type ContextOption func(*appendableConfig)

type appendableConfig struct {
	name    string
	logger  ConfigurationLogger
	emitter *activity.Emitter
}

// WithContextName names the programmatic source built from the context.
// Defaults to "programmatic".
func WithContextName(name string) ContextOption {
	return func(cfg *appendableConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithConfigurationLogger logs every declaration.
func WithConfigurationLogger(logger ConfigurationLogger) ContextOption {
	return func(cfg *appendableConfig) {
		if logger == nil {
			cfg.logger = discardLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityEmitter emits an activity event for every declaration.
func WithActivityEmitter(emitter *activity.Emitter) ContextOption {
	return func(cfg *appendableConfig) {
		cfg.emitter = emitter
	}
}

// AppendableConfigurationContext accumulates declarations in order. It is
// not safe for concurrent mutation; call Freeze once configuration is done,
// after which reads are safe from any goroutine.
type AppendableConfigurationContext struct {
	cfg     appendableConfig
	entries []Entry
	index   map[ScopeRef][]int
	frozen  bool
}

// NewAppendableConfigurationContext returns an empty context.
func NewAppendableConfigurationContext(opts ...ContextOption) *AppendableConfigurationContext {
	cfg := appendableConfig{
		name:   "programmatic",
		logger: discardLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &AppendableConfigurationContext{
		cfg:   cfg,
		index: map[ScopeRef][]int{},
	}
}

// Name returns the name of the context, used as source name.
func (c *AppendableConfigurationContext) Name() string {
	return c.cfg.name
}

// Append records pair for scope. Values are validated before they are
// recorded; nothing is recorded on error.
func (c *AppendableConfigurationContext) Append(scope ScopeRef, element ElementKind, pair OptionValuePair) error {
	if err := c.append(scope, element, pair); err != nil {
		c.cfg.logger.LogConfiguration(ConfigurationLogEvent{
			Scope:   scope.Identifier(),
			Element: element.String(),
			Option:  pair.Option.Name(),
			Key:     pair.Identifier,
			Value:   pair.Value,
			Source:  c.cfg.name,
			Err:     err,
		})
		return err
	}
	return nil
}

func (c *AppendableConfigurationContext) append(scope ScopeRef, element ElementKind, pair OptionValuePair) error {
	if c.frozen {
		return configurationError(scope, element.String(), pair.Option.Name(), ErrFrozen)
	}
	if scope.isZero() {
		return configurationError(scope, element.String(), pair.Option.Name(), ErrScopeMismatch)
	}
	if err := pair.validate(); err != nil {
		return configurationError(scope, element.String(), pair.Option.Name(), err)
	}

	previous, overridden := c.lastValue(scope, pair)

	c.index[scope] = append(c.index[scope], len(c.entries))
	c.entries = append(c.entries, Entry{Scope: scope, Element: element, Pair: pair})

	c.cfg.logger.LogConfiguration(ConfigurationLogEvent{
		Scope:   scope.Identifier(),
		Element: element.String(),
		Option:  pair.Option.Name(),
		Key:     pair.Identifier,
		Value:   pair.Value,
		Source:  c.cfg.name,
	})
	c.emit(scope, element, pair, previous, overridden)
	return nil
}

func (c *AppendableConfigurationContext) lastValue(scope ScopeRef, pair OptionValuePair) (any, bool) {
	positions := c.index[scope]
	for i := len(positions) - 1; i >= 0; i-- {
		entry := c.entries[positions[i]]
		if entry.Pair.Option != pair.Option {
			continue
		}
		if !pair.Option.unique && entry.Pair.Identifier != pair.Identifier {
			continue
		}
		return entry.Pair.Value, true
	}
	return nil, false
}

func (c *AppendableConfigurationContext) emit(scope ScopeRef, element ElementKind, pair OptionValuePair, previous any, overridden bool) {
	if !c.cfg.emitter.Enabled() {
		return
	}
	input := activity.OptionEventInput{
		Scope: activity.ScopeContext{
			Kind:       scope.Kind.String(),
			Identifier: scope.Identifier(),
			Entity:     entityNameOrEmpty(scope),
			Property:   scope.Property,
			Element:    element.String(),
		},
		Option:   pair.Option.Name(),
		Key:      pair.Identifier,
		NewValue: pair.Value,
		Source:   c.cfg.name,
	}
	event := activity.BuildOptionDeclaredEvent(input)
	if overridden {
		input.OldValue = previous
		event = activity.BuildOptionOverriddenEvent(input)
	}
	if err := c.cfg.emitter.Emit(context.Background(), event); err != nil {
		c.cfg.logger.LogConfiguration(ConfigurationLogEvent{
			Scope:  scope.Identifier(),
			Option: pair.Option.Name(),
			Source: c.cfg.name,
			Err:    fmt.Errorf("opts: activity: %w", err),
		})
	}
}

func entityNameOrEmpty(scope ScopeRef) string {
	if scope.Entity == nil {
		return ""
	}
	return scope.Entity.String()
}

// Freeze ends the configuration phase. Later appends fail with ErrFrozen.
func (c *AppendableConfigurationContext) Freeze() {
	if c.frozen {
		return
	}
	c.frozen = true
	if c.cfg.emitter.Enabled() {
		_ = c.cfg.emitter.Emit(context.Background(), activity.BuildConfigurationFrozenEvent(activity.OptionEventInput{
			Source: c.cfg.name,
			Metadata: map[string]any{
				"entries": len(c.entries),
				"scopes":  len(c.index),
			},
		}))
	}
}

// Frozen reports whether Freeze was called.
func (c *AppendableConfigurationContext) Frozen() bool {
	return c.frozen
}

// Entries returns a copy of all recorded declarations in insertion order.
func (c *AppendableConfigurationContext) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Scopes lists the scopes that received at least one declaration, in the
// order they were first referenced.
func (c *AppendableConfigurationContext) Scopes() []ScopeRef {
	out := make([]ScopeRef, 0, len(c.index))
	seen := make(map[ScopeRef]struct{}, len(c.index))
	for _, entry := range c.entries {
		if _, ok := seen[entry.Scope]; ok {
			continue
		}
		seen[entry.Scope] = struct{}{}
		out = append(out, entry.Scope)
	}
	return out
}

// Container materialises the declarations of scope by replaying them in
// insertion order. Each call returns a fresh container.
func (c *AppendableConfigurationContext) Container(scope ScopeRef) *Container {
	container := NewContainer()
	for _, position := range c.index[scope] {
		container.put(c.entries[position].Pair)
	}
	return container
}
