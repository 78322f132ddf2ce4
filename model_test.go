package opts

import "fmt"

// Sample option model shared by the tests of this package.

var (
	forceOption      = NewUniqueOption[bool]("force")
	nameOption       = NewUniqueOption[string]("name")
	embedOption      = NewUniqueOption[string]("embed")
	limitOption      = NewUniqueOption[limit]("limit")
	namedQueryOption = NewKeyedOption[string, string]("namedQuery")
)

type limit struct {
	Max int `mapstructure:"max" validate:"gte=1"`
}

type sampleGlobal struct {
	GlobalNavigation[*sampleGlobal, *sampleEntity, *sampleProperty]
}

func (c *sampleGlobal) Force(force bool) *sampleGlobal {
	c.AddOption(UniqueValue(forceOption, force))
	return c
}

func (c *sampleGlobal) NamedQuery(name, query string) *sampleGlobal {
	c.AddOption(KeyedValue(namedQueryOption, name, query))
	return c
}

func (c *sampleGlobal) Limit(max int) *sampleGlobal {
	c.AddOption(UniqueValue(limitOption, limit{Max: max}))
	return c
}

type sampleEntity struct {
	EntityNavigation[*sampleGlobal, *sampleEntity, *sampleProperty]
}

func (c *sampleEntity) Force(force bool) *sampleEntity {
	c.AddOption(UniqueValue(forceOption, force))
	return c
}

func (c *sampleEntity) Name(name string) *sampleEntity {
	c.AddOption(UniqueValue(nameOption, name))
	return c
}

func (c *sampleEntity) NamedQuery(name, query string) *sampleEntity {
	c.AddOption(KeyedValue(namedQueryOption, name, query))
	return c
}

type sampleProperty struct {
	PropertyNavigation[*sampleGlobal, *sampleEntity, *sampleProperty]
}

func (c *sampleProperty) Embed(embed string) *sampleProperty {
	c.AddOption(UniqueValue(embedOption, embed))
	return c
}

func (c *sampleProperty) Force(force bool) *sampleProperty {
	c.AddOption(UniqueValue(forceOption, force))
	return c
}

var sampleContexts = &Contexts[*sampleGlobal, *sampleEntity, *sampleProperty]{
	Global: func(n GlobalNavigation[*sampleGlobal, *sampleEntity, *sampleProperty]) *sampleGlobal {
		return &sampleGlobal{n}
	},
	Entity: func(n EntityNavigation[*sampleGlobal, *sampleEntity, *sampleProperty]) *sampleEntity {
		return &sampleEntity{n}
	},
	Property: func(n PropertyNavigation[*sampleGlobal, *sampleEntity, *sampleProperty]) *sampleProperty {
		return &sampleProperty{n}
	},
}

func newSampleConfiguration(options ...ContextOption) (*sampleGlobal, *ConfigurationContext) {
	cfg := NewConfigurationContext(NewAppendableConfigurationContext(options...))
	return NewConfiguration(cfg, sampleContexts), cfg
}

type contextExample struct {
	property string
}

func (c contextExample) GetProperty() string {
	return c.property
}

type refrigerator struct {
	Temperature int
}

type microwave struct {
	Power int
}

type timestamps struct {
	Created string
}

type auditable struct {
	timestamps
	Owner string
}

type appliance struct {
	auditable
	Model string
}

func (a *appliance) Label() (string, error) {
	if a == nil {
		return "", fmt.Errorf("nil appliance")
	}
	return a.Model, nil
}

func (appliance) Reset(int) {}
