package document

import opts "github.com/goliatone/go-datastore-options"

// GlobalContext adds the document store setters to the global level.
// Datastores embed it in their own global context type G.
type GlobalContext[G, E, P any] struct {
	opts.GlobalNavigation[G, E, P]
}

// AssociationStorage sets the default association storage strategy.
func (c GlobalContext[G, E, P]) AssociationStorage(storage AssociationStorageType) G {
	c.AddOption(opts.UniqueValue(AssociationStorageOption, storage))
	return c.Self()
}

// EntityContext adds the document store setters to the entity level.
type EntityContext[G, E, P any] struct {
	opts.EntityNavigation[G, E, P]
}

// AssociationStorage sets the strategy for all associations of the entity.
func (c EntityContext[G, E, P]) AssociationStorage(storage AssociationStorageType) E {
	c.AddOption(opts.UniqueValue(AssociationStorageOption, storage))
	return c.Self()
}

// PropertyContext adds the document store setters to the property level.
type PropertyContext[G, E, P any] struct {
	opts.PropertyNavigation[G, E, P]
}

// AssociationStorage sets the strategy of the association held by the
// property. It has no effect on non-association properties.
func (c PropertyContext[G, E, P]) AssociationStorage(storage AssociationStorageType) P {
	c.AddOption(opts.UniqueValue(AssociationStorageOption, storage))
	return c.Self()
}

// Contexts returns constructors for a datastore that only needs the
// document store setters.
func Contexts() *opts.Contexts[*Global, *Entity, *Property] {
	return contexts
}

// Global, Entity and Property are the plain document store contexts.
type (
	Global struct {
		GlobalContext[*Global, *Entity, *Property]
	}
	Entity struct {
		EntityContext[*Global, *Entity, *Property]
	}
	Property struct {
		PropertyContext[*Global, *Entity, *Property]
	}
)

var contexts = &opts.Contexts[*Global, *Entity, *Property]{
	Global: func(n opts.GlobalNavigation[*Global, *Entity, *Property]) *Global {
		return &Global{GlobalContext[*Global, *Entity, *Property]{n}}
	},
	Entity: func(n opts.EntityNavigation[*Global, *Entity, *Property]) *Entity {
		return &Entity{EntityContext[*Global, *Entity, *Property]{n}}
	},
	Property: func(n opts.PropertyNavigation[*Global, *Entity, *Property]) *Property {
		return &Property{PropertyContext[*Global, *Entity, *Property]{n}}
	},
}

// Configure starts a document store configuration chain writing into cfg.
func Configure(cfg *opts.ConfigurationContext) *Global {
	return opts.NewConfiguration(cfg, contexts)
}
