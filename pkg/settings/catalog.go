package settings

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	opts "github.com/goliatone/go-datastore-options"
)

// ErrDuplicateName indicates a second option or entity registered under one
// name.
var ErrDuplicateName = errors.New("settings: name already registered")

// Catalog resolves the names used in settings documents to option keys and
// entity types.
type Catalog struct {
	mu       sync.RWMutex
	options  map[string]*opts.OptionKey
	entities map[string]reflect.Type
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		options:  map[string]*opts.OptionKey{},
		entities: map[string]reflect.Type{},
	}
}

// RegisterOptions makes options addressable by their names.
func (c *Catalog) RegisterOptions(options ...*opts.OptionKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, option := range options {
		if option == nil {
			continue
		}
		if existing, ok := c.options[option.Name()]; ok && existing != option {
			return fmt.Errorf("%w: option %s", ErrDuplicateName, option.Name())
		}
		c.options[option.Name()] = option
	}
	return nil
}

// RegisterEntity makes entity addressable by its Go name ("Order"), its
// qualified name ("shop.Order") and any alias.
func (c *Catalog) RegisterEntity(entity any, aliases ...string) error {
	t, err := opts.EntityType(entity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range append([]string{t.Name(), t.String()}, aliases...) {
		if name == "" {
			continue
		}
		if existing, ok := c.entities[name]; ok && existing != t {
			return fmt.Errorf("%w: entity %s", ErrDuplicateName, name)
		}
		c.entities[name] = t
	}
	return nil
}

// Option looks up an option by name.
func (c *Catalog) Option(name string) (*opts.OptionKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	option, ok := c.options[name]
	return option, ok
}

// Entity looks up an entity type by name or alias.
func (c *Catalog) Entity(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entities[name]
	return t, ok
}

// OptionNames returns the registered option names sorted alphabetically.
func (c *Catalog) OptionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.options))
	for name := range c.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
