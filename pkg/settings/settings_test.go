package settings_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/datastore/document"
	"github.com/goliatone/go-datastore-options/datastore/mongodb"
	"github.com/goliatone/go-datastore-options/pkg/settings"
)

type Order struct {
	ID    string
	Items []string
	total int
}

func (o Order) Total() int { return o.total }

type Customer struct {
	Name string
}

var namedQuery = opts.NewKeyedOption[string, string]("namedQuery")

func catalog(t *testing.T) *settings.Catalog {
	t.Helper()
	c := settings.NewCatalog()
	require.NoError(t, c.RegisterOptions(
		document.AssociationStorageOption.Key(),
		mongodb.WriteConcernOption.Key(),
		mongodb.ReadPreferenceOption.Key(),
		mongodb.AssociationDocumentStorageOption.Key(),
		namedQuery.Key(),
	))
	require.NoError(t, c.RegisterEntity(Order{}))
	require.NoError(t, c.RegisterEntity(&Customer{}, "shop.Customer"))
	return c
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	c := catalog(t)
	assert.NoError(t, c.RegisterOptions(namedQuery.Key()), "re-registering the same key is a no-op")

	other := opts.NewUniqueOption[string]("namedQuery")
	assert.ErrorIs(t, c.RegisterOptions(other.Key()), settings.ErrDuplicateName)

	type Order struct{}
	assert.ErrorIs(t, c.RegisterEntity(Order{}), settings.ErrDuplicateName)
	assert.Contains(t, c.OptionNames(), "writeConcern")

	_, ok := c.Entity("settings_test.Order")
	assert.True(t, ok)
}

func TestLoadAndResolveAsLowPrecedenceSource(t *testing.T) {
	doc, err := settings.Load("testdata/mongodb.yaml")
	require.NoError(t, err)

	source, err := doc.Source(catalog(t))
	require.NoError(t, err)
	assert.Equal(t, settings.SourceName, source.Name())

	cfg := opts.NewConfigurationContext(nil)
	mongodb.Configure(cfg).
		Entity(Order{}).
		Property("total", opts.ElementAccessor).
		ReadPreference(mongodb.Secondary)

	service, err := opts.Bootstrap(cfg, opts.WithSources(source))
	require.NoError(t, err)

	orderType := reflect.TypeFor[Order]()
	global := mongodb.Resolve(service.GlobalContext())
	assert.Equal(t, mongodb.PrimaryPreferred, global.ReadPreference)
	assert.Equal(t, 2, global.WriteConcern.W)
	assert.True(t, global.WriteConcern.Journal)
	assert.Equal(t, 1500*time.Millisecond, global.WriteConcern.WTimeout)

	items := mongodb.Resolve(service.PropertyContext(orderType, "items"))
	assert.Equal(t, document.AssociationDocument, items.AssociationStorage)
	assert.Equal(t, mongodb.CollectionPerAssociation, items.AssociationDocumentStorage)

	total := mongodb.Resolve(service.PropertyContext(orderType, "total"))
	assert.Equal(t, mongodb.Secondary, total.ReadPreference, "fluent declarations override settings")

	queries := opts.GetAll(service.EntityContext(orderType), namedQuery)
	assert.Len(t, queries, 2)
	assert.Equal(t, "from Order o order by o.created desc", queries["recent"])

	customer := mongodb.Resolve(service.EntityContext(reflect.TypeFor[Customer]()))
	assert.True(t, customer.WriteConcern.Majority)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "global: [unterminated"},
		{"unknown key", "version: 1\nextras: true\n"},
		{"bad version", "version: 2\n"},
		{"missing entity", "entities:\n  - options: {}\n"},
		{"bad element", "entities:\n  - entity: Order\n    properties:\n      - name: items\n        element: column\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := settings.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyFailures(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{"unknown option", "global:\n  shardKey: hashed\n", opts.ErrUnknownOption},
		{"invalid value", "global:\n  readPreference: FASTEST\n", opts.ErrInvalidValue},
		{"keyed without mapping", "global:\n  namedQuery: nope\n", opts.ErrInvalidValue},
		{"unknown entity", "entities:\n  - entity: Invoice\n", opts.ErrUnknownEntity},
		{"unknown property", "entities:\n  - entity: Order\n    properties:\n      - name: items\n        element: accessor\n", opts.ErrUnknownProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := settings.Parse([]byte(tt.yaml))
			require.NoError(t, err)

			cfg := opts.NewConfigurationContext(nil)
			err = doc.Apply(cfg, catalog(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, opts.ErrConfiguration)
			assert.Equal(t, err, cfg.Err())
		})
	}
}
