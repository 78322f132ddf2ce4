package opts

import "fmt"

// ConfigurationContext is shared by every fluent context of one
// configuration chain. It forwards declarations to the appendable context
// and keeps the first error raised by the chain.
//
// Fluent methods cannot return errors without breaking the chain, so a
// failing navigation or declaration records its error here and every later
// declaration becomes a no-op. Check Err, or let Bootstrap do it.
type ConfigurationContext struct {
	appendable *AppendableConfigurationContext
	err        error
}

// NewConfigurationContext wraps appendable. A nil appendable gets a fresh
// context.
func NewConfigurationContext(appendable *AppendableConfigurationContext) *ConfigurationContext {
	if appendable == nil {
		appendable = NewAppendableConfigurationContext()
	}
	return &ConfigurationContext{appendable: appendable}
}

// Appendable returns the context receiving declarations.
func (c *ConfigurationContext) Appendable() *AppendableConfigurationContext {
	return c.appendable
}

// Err returns the first error raised by the chain.
func (c *ConfigurationContext) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// Add records pair for scope unless the chain already failed.
func (c *ConfigurationContext) Add(scope ScopeRef, element ElementKind, pair OptionValuePair) {
	if c.err != nil {
		return
	}
	if err := c.appendable.Append(scope, element, pair); err != nil {
		c.fail(err)
	}
}

// Fail records err as the chain error unless one is already recorded.
// Loaders declaring options outside the fluent API use it to stop the
// chain.
func (c *ConfigurationContext) Fail(err error) {
	if err != nil {
		c.fail(err)
	}
}

func (c *ConfigurationContext) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *ConfigurationContext) resolveEntity(entity any) (ScopeRef, bool) {
	if c.err != nil {
		return ScopeRef{}, false
	}
	t, err := EntityType(entity)
	if err != nil {
		c.fail(configurationError(ScopeRef{}, fmt.Sprintf("%v", entity), "", err))
		return ScopeRef{}, false
	}
	return EntityScope(t), true
}

func (c *ConfigurationContext) resolveProperty(entity ScopeRef, name string, kind ElementKind) (ScopeRef, bool) {
	if c.err != nil || entity.Entity == nil {
		return ScopeRef{}, false
	}
	if err := ValidateProperty(entity.Entity, name, kind); err != nil {
		c.fail(configurationError(entity, kind.String()+" "+name, "", err))
		return ScopeRef{}, false
	}
	return PropertyScope(entity.Entity, name), true
}

// Contexts binds the datastore specific fluent types to the shared
// navigation. G, E and P are the datastore's global, entity and property
// context types; each constructor wraps the navigation state it receives.
type Contexts[G, E, P any] struct {
	Global   func(GlobalNavigation[G, E, P]) G
	Entity   func(EntityNavigation[G, E, P]) E
	Property func(PropertyNavigation[G, E, P]) P
}

// NewConfiguration returns the global level context of a new chain writing
// into cfg.
func NewConfiguration[G, E, P any](cfg *ConfigurationContext, contexts *Contexts[G, E, P]) G {
	return contexts.Global(GlobalNavigation[G, E, P]{navigation[G, E, P]{
		cfg:      cfg,
		contexts: contexts,
		scope:    GlobalScope(),
		element:  ElementType,
	}})
}

type navigation[G, E, P any] struct {
	cfg      *ConfigurationContext
	contexts *Contexts[G, E, P]
	scope    ScopeRef
	element  ElementKind
}

// Context returns the shared configuration context.
func (n navigation[G, E, P]) Context() *ConfigurationContext {
	return n.cfg
}

// Scope returns the scope declarations made through this context apply to.
func (n navigation[G, E, P]) Scope() ScopeRef {
	return n.scope
}

// Err returns the first error raised by the chain.
func (n navigation[G, E, P]) Err() error {
	return n.cfg.Err()
}

// AddOption declares pair at the scope of this context. Datastore setters
// call it and return their own context.
func (n navigation[G, E, P]) AddOption(pair OptionValuePair) {
	if n.scope.isZero() {
		n.cfg.fail(configurationError(n.scope, n.element.String(), pair.Option.Name(), ErrScopeMismatch))
		return
	}
	n.cfg.Add(n.scope, n.element, pair)
}

func (n navigation[G, E, P]) global() G {
	return n.contexts.Global(GlobalNavigation[G, E, P]{navigation[G, E, P]{
		cfg:      n.cfg,
		contexts: n.contexts,
		scope:    GlobalScope(),
		element:  ElementType,
	}})
}

func (n navigation[G, E, P]) entity(entity any) E {
	scope, _ := n.cfg.resolveEntity(entity)
	return n.contexts.Entity(EntityNavigation[G, E, P]{navigation[G, E, P]{
		cfg:      n.cfg,
		contexts: n.contexts,
		scope:    scope,
		element:  ElementType,
	}})
}

func (n navigation[G, E, P]) property(name string, kind ElementKind) P {
	entity := n.scope
	if entity.Kind == ScopeProperty {
		entity = entity.entityScope()
	}
	scope, _ := n.cfg.resolveProperty(entity, name, kind)
	return n.contexts.Property(PropertyNavigation[G, E, P]{navigation[G, E, P]{
		cfg:      n.cfg,
		contexts: n.contexts,
		scope:    scope,
		element:  kind,
	}})
}

// GlobalNavigation is the global level of a configuration chain.
type GlobalNavigation[G, E, P any] struct {
	navigation[G, E, P]
}

// Entity starts configuring entity, given as a struct value, a pointer, or a
// reflect.Type.
func (n GlobalNavigation[G, E, P]) Entity(entity any) E {
	return n.entity(entity)
}

// Self returns the datastore context wrapping this level.
func (n GlobalNavigation[G, E, P]) Self() G {
	return n.contexts.Global(n)
}

// EntityNavigation is the entity level of a configuration chain.
type EntityNavigation[G, E, P any] struct {
	navigation[G, E, P]
}

// Entity switches to another entity.
func (n EntityNavigation[G, E, P]) Entity(entity any) E {
	return n.entity(entity)
}

// Property starts configuring a property of the current entity. The
// property must be declared for kind; otherwise the chain fails.
func (n EntityNavigation[G, E, P]) Property(name string, kind ElementKind) P {
	return n.property(name, kind)
}

// Global returns to the global level.
func (n EntityNavigation[G, E, P]) Global() G {
	return n.global()
}

// Self returns the datastore context wrapping this level.
func (n EntityNavigation[G, E, P]) Self() E {
	return n.contexts.Entity(n)
}

// PropertyNavigation is the property level of a configuration chain.
type PropertyNavigation[G, E, P any] struct {
	navigation[G, E, P]
}

// Entity switches to another entity.
func (n PropertyNavigation[G, E, P]) Entity(entity any) E {
	return n.entity(entity)
}

// Property switches to a sibling property of the current entity.
func (n PropertyNavigation[G, E, P]) Property(name string, kind ElementKind) P {
	return n.property(name, kind)
}

// Global returns to the global level.
func (n PropertyNavigation[G, E, P]) Global() G {
	return n.global()
}

// Self returns the datastore context wrapping this level.
func (n PropertyNavigation[G, E, P]) Self() P {
	return n.contexts.Property(n)
}
