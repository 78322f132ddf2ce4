package mongodb

import (
	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/datastore/document"
)

// GlobalContext is the global level of a MongoDB configuration chain.
type GlobalContext struct {
	document.GlobalContext[*GlobalContext, *EntityContext, *PropertyContext]
}

// WriteConcern sets the default write concern.
func (c *GlobalContext) WriteConcern(concern WriteConcernType) *GlobalContext {
	c.AddOption(opts.UniqueValue(WriteConcernOption, concern.WriteConcern()))
	return c
}

// WriteConcernValue sets a custom default write concern.
func (c *GlobalContext) WriteConcernValue(concern WriteConcern) *GlobalContext {
	c.AddOption(opts.UniqueValue(WriteConcernOption, concern))
	return c
}

// ReadPreference sets the default read preference.
func (c *GlobalContext) ReadPreference(preference ReadPreferenceType) *GlobalContext {
	c.AddOption(opts.UniqueValue(ReadPreferenceOption, preference))
	return c
}

// AssociationDocumentStorage sets the default association document layout.
func (c *GlobalContext) AssociationDocumentStorage(storage AssociationDocumentType) *GlobalContext {
	c.AddOption(opts.UniqueValue(AssociationDocumentStorageOption, storage))
	return c
}

// EntityContext is the entity level of a MongoDB configuration chain.
type EntityContext struct {
	document.EntityContext[*GlobalContext, *EntityContext, *PropertyContext]
}

// WriteConcern sets the write concern for writes to the entity.
func (c *EntityContext) WriteConcern(concern WriteConcernType) *EntityContext {
	c.AddOption(opts.UniqueValue(WriteConcernOption, concern.WriteConcern()))
	return c
}

// WriteConcernValue sets a custom write concern for the entity.
func (c *EntityContext) WriteConcernValue(concern WriteConcern) *EntityContext {
	c.AddOption(opts.UniqueValue(WriteConcernOption, concern))
	return c
}

// ReadPreference sets the read preference for the entity.
func (c *EntityContext) ReadPreference(preference ReadPreferenceType) *EntityContext {
	c.AddOption(opts.UniqueValue(ReadPreferenceOption, preference))
	return c
}

// AssociationDocumentStorage sets the association document layout for the
// associations of the entity.
func (c *EntityContext) AssociationDocumentStorage(storage AssociationDocumentType) *EntityContext {
	c.AddOption(opts.UniqueValue(AssociationDocumentStorageOption, storage))
	return c
}

// PropertyContext is the property level of a MongoDB configuration chain.
// Its settings only take effect when the property is an association.
type PropertyContext struct {
	document.PropertyContext[*GlobalContext, *EntityContext, *PropertyContext]
}

// WriteConcern sets the write concern for writes to the association.
func (c *PropertyContext) WriteConcern(concern WriteConcernType) *PropertyContext {
	c.AddOption(opts.UniqueValue(WriteConcernOption, concern.WriteConcern()))
	return c
}

// WriteConcernValue sets a custom write concern for the association.
func (c *PropertyContext) WriteConcernValue(concern WriteConcern) *PropertyContext {
	c.AddOption(opts.UniqueValue(WriteConcernOption, concern))
	return c
}

// ReadPreference sets the read preference for the association.
func (c *PropertyContext) ReadPreference(preference ReadPreferenceType) *PropertyContext {
	c.AddOption(opts.UniqueValue(ReadPreferenceOption, preference))
	return c
}

// AssociationDocumentStorage sets the association document layout,
// overriding entity and global settings.
func (c *PropertyContext) AssociationDocumentStorage(storage AssociationDocumentType) *PropertyContext {
	c.AddOption(opts.UniqueValue(AssociationDocumentStorageOption, storage))
	return c
}

var contexts = &opts.Contexts[*GlobalContext, *EntityContext, *PropertyContext]{
	Global: func(n opts.GlobalNavigation[*GlobalContext, *EntityContext, *PropertyContext]) *GlobalContext {
		return &GlobalContext{document.GlobalContext[*GlobalContext, *EntityContext, *PropertyContext]{GlobalNavigation: n}}
	},
	Entity: func(n opts.EntityNavigation[*GlobalContext, *EntityContext, *PropertyContext]) *EntityContext {
		return &EntityContext{document.EntityContext[*GlobalContext, *EntityContext, *PropertyContext]{EntityNavigation: n}}
	},
	Property: func(n opts.PropertyNavigation[*GlobalContext, *EntityContext, *PropertyContext]) *PropertyContext {
		return &PropertyContext{document.PropertyContext[*GlobalContext, *EntityContext, *PropertyContext]{PropertyNavigation: n}}
	},
}

// Configure starts a MongoDB configuration chain writing into cfg.
//
//	mongodb.Configure(cfg).
//		WriteConcern(mongodb.Majority).
//		Entity(Order{}).
//			ReadPreference(mongodb.Nearest).
//			Property("items", opts.ElementField).
//				AssociationStorage(document.AssociationDocument)
func Configure(cfg *opts.ConfigurationContext) *GlobalContext {
	return opts.NewConfiguration(cfg, contexts)
}
