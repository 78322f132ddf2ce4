package state_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/datastore/document"
	"github.com/goliatone/go-datastore-options/datastore/mongodb"
	"github.com/goliatone/go-datastore-options/pkg/settings"
	"github.com/goliatone/go-datastore-options/pkg/state"
)

type Order struct {
	ID    string
	Items []string
}

var namedQuery = opts.NewKeyedOption[string, string]("namedQuery")

func newLoader(t *testing.T, store state.Store) state.Loader {
	t.Helper()
	catalog := settings.NewCatalog()
	if err := catalog.RegisterOptions(
		document.AssociationStorageOption.Key(),
		mongodb.ReadPreferenceOption.Key(),
		mongodb.WriteConcernOption.Key(),
		namedQuery.Key(),
	); err != nil {
		t.Fatalf("register options: %v", err)
	}
	if err := catalog.RegisterEntity(Order{}); err != nil {
		t.Fatalf("register entity: %v", err)
	}
	return state.Loader{Store: store, Catalog: catalog}
}

func mustSave(t *testing.T, store state.Store, ref state.Ref, records ...state.Record) {
	t.Helper()
	if _, err := store.Save(context.Background(), ref, records, state.Meta{}); err != nil {
		t.Fatalf("save %+v: %v", ref, err)
	}
}

func TestLoaderApplyDecodesRecords(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	mustSave(t, store, state.Ref{Domain: "mongodb"},
		state.Record{Option: "readPreference", Value: "nearest"},
		state.Record{Option: "writeConcern", Value: map[string]any{"w": "2", "journal": true}},
	)
	mustSave(t, store, state.Ref{Domain: "mongodb", Entity: "state_test.Order"},
		state.Record{Option: "namedQuery", Identifier: "all", Value: "from Order"},
	)
	mustSave(t, store, state.Ref{Domain: "mongodb", Entity: "Order", Property: "items"},
		state.Record{Option: "associationStorage", Value: "ASSOCIATION_DOCUMENT", Element: "field"},
	)

	loader := newLoader(t, store)
	cfg := opts.NewConfigurationContext(nil)
	if err := loader.Apply(ctx, cfg,
		state.Ref{Domain: "mongodb"},
		state.Ref{Domain: "mongodb", Entity: "state_test.Order"},
		state.Ref{Domain: "mongodb", Entity: "Order", Property: "items"},
		state.Ref{Domain: "mongodb", Entity: "Order", Property: "id"},
	); err != nil {
		t.Fatalf("apply: %v", err)
	}

	service, err := opts.Bootstrap(cfg)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	orderType := reflect.TypeFor[Order]()
	resolved := mongodb.Resolve(service.PropertyContext(orderType, "items"))
	if resolved.ReadPreference != mongodb.Nearest {
		t.Fatalf("expected NEAREST, got %s", resolved.ReadPreference)
	}
	if resolved.WriteConcern.W != 2 {
		t.Fatalf("expected w=2, got %d", resolved.WriteConcern.W)
	}
	if resolved.AssociationStorage != document.AssociationDocument {
		t.Fatalf("expected association documents, got %s", resolved.AssociationStorage)
	}
	if got := opts.Get(service.EntityContext(orderType), namedQuery, "all"); got != "from Order" {
		t.Fatalf("expected named query, got %q", got)
	}
}

func TestLoaderApplyFailures(t *testing.T) {
	tests := []struct {
		name    string
		ref     state.Ref
		records []state.Record
		target  error
	}{
		{"unknown option", state.Ref{Domain: "d"}, []state.Record{{Option: "shardKey", Value: "x"}}, opts.ErrUnknownOption},
		{"invalid value", state.Ref{Domain: "d"}, []state.Record{{Option: "readPreference", Value: "FASTEST"}}, opts.ErrInvalidValue},
		{"unknown entity", state.Ref{Domain: "d", Entity: "Invoice"}, []state.Record{{Option: "readPreference", Value: "NEAREST"}}, opts.ErrUnknownEntity},
		{"unknown property", state.Ref{Domain: "d", Entity: "Order", Property: "items"}, []state.Record{{Option: "readPreference", Value: "NEAREST", Element: "accessor"}}, opts.ErrUnknownProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewMemoryStore()
			mustSave(t, store, tt.ref, tt.records...)

			cfg := opts.NewConfigurationContext(nil)
			err := newLoader(t, store).Apply(context.Background(), cfg, tt.ref)
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
			if !errors.Is(cfg.Err(), opts.ErrConfiguration) {
				t.Fatalf("expected the chain to fail, got %v", cfg.Err())
			}
		})
	}
}

func TestLoaderSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	loader := newLoader(t, store)

	appendable := opts.NewAppendableConfigurationContext()
	cfg := opts.NewConfigurationContext(appendable)
	mongodb.Configure(cfg).
		ReadPreference(mongodb.Secondary).
		Entity(Order{}).
		Property("items", opts.ElementField).
		AssociationStorage(document.AssociationDocument)
	cfg.Add(opts.EntityScope(reflect.TypeFor[Order]()), opts.ElementType, opts.KeyedValue(namedQuery, "all", "from Order"))
	if err := cfg.Err(); err != nil {
		t.Fatalf("configuration: %v", err)
	}

	refs, err := loader.Save(ctx, "mongodb", appendable, state.Meta{ETag: "v1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %+v", refs)
	}
	if refs[0] != (state.Ref{Domain: "mongodb"}) {
		t.Fatalf("unexpected first ref %+v", refs[0])
	}
	if refs[1] != (state.Ref{Domain: "mongodb", Entity: "state_test.Order", Property: "items"}) {
		t.Fatalf("unexpected second ref %+v", refs[1])
	}

	source, err := loader.Source(ctx, refs...)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if source.Name() != "state" {
		t.Fatalf("expected source name state, got %q", source.Name())
	}

	service := opts.NewOptionsService(opts.WithSources(source))
	orderType := reflect.TypeFor[Order]()
	items := mongodb.Resolve(service.PropertyContext(orderType, "items"))
	if items.ReadPreference != mongodb.Secondary || items.AssociationStorage != document.AssociationDocument {
		t.Fatalf("unexpected items settings %+v", items)
	}
	if got := opts.Get(service.EntityContext(orderType), namedQuery, "all"); got != "from Order" {
		t.Fatalf("expected named query, got %q", got)
	}
}

func TestLoaderMutate(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	loader := newLoader(t, store)
	ref := state.Ref{Domain: "mongodb"}

	first, err := loader.Mutate(ctx, ref, state.Meta{Extra: map[string]string{"by": "ops"}}, func(records *[]state.Record) error {
		*records = append(*records, state.Record{Option: "readPreference", Value: "PRIMARY"})
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if first.ETag == "" || first.Extra["by"] != "ops" {
		t.Fatalf("unexpected meta %+v", first)
	}

	if _, err := loader.Mutate(ctx, ref, state.Meta{ETag: "stale"}, func(*[]state.Record) error { return nil }); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected etag mismatch, got %v", err)
	}

	_, err = loader.Mutate(ctx, ref, state.Meta{ETag: first.ETag}, func(records *[]state.Record) error {
		(*records)[0].Value = "FASTEST"
		return nil
	})
	if !errors.Is(err, opts.ErrInvalidValue) {
		t.Fatalf("expected invalid value, got %v", err)
	}

	boom := errors.New("boom")
	if _, err := loader.Mutate(ctx, ref, state.Meta{}, func(*[]state.Record) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	records, meta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if records[0].Value != "PRIMARY" {
		t.Fatalf("failed mutations must not be saved, got %+v", records)
	}
	if meta.ETag != first.ETag {
		t.Fatalf("expected etag %q, got %q", first.ETag, meta.ETag)
	}

	if _, err := loader.Mutate(ctx, ref, state.Meta{}, nil); err == nil {
		t.Fatalf("expected nil mutator to fail")
	}
	if _, err := (state.Loader{}).Mutate(ctx, ref, state.Meta{}, func(*[]state.Record) error { return nil }); err == nil {
		t.Fatalf("expected an unconfigured loader to fail")
	}
}

// racingStore lets another writer win the first saves it receives.
type racingStore struct {
	state.Store
	conflicts int
}

func (s *racingStore) Save(ctx context.Context, ref state.Ref, records []state.Record, meta state.Meta) (state.Meta, error) {
	if s.conflicts > 0 {
		s.conflicts--
		if _, err := s.Store.Save(ctx, ref, []state.Record{{Option: "readPreference", Value: "SECONDARY"}}, state.Meta{}); err != nil {
			return state.Meta{}, err
		}
	}
	return s.Store.Save(ctx, ref, records, meta)
}

func TestLoaderUpdateRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{Store: state.NewMemoryStore(), conflicts: 2}
	loader := newLoader(t, store)
	loader.BackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	ref := state.Ref{Domain: "mongodb"}
	mustSave(t, store.Store, ref)

	calls := 0
	meta, err := loader.Update(ctx, ref, func(records *[]state.Record) error {
		calls++
		*records = append(*records, state.Record{Option: "writeConcern", Value: "MAJORITY"})
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 3 || meta.ETag == "" {
		t.Fatalf("expected 3 attempts and a new etag, got calls=%d meta=%+v", calls, meta)
	}

	records, _, _, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 || records[0].Value != "SECONDARY" || records[1].Value != "MAJORITY" {
		t.Fatalf("expected the racing write to be kept, got %+v", records)
	}
}

// createRaceStore makes another writer create the ref between the first
// load and save it sees.
type createRaceStore struct {
	state.Store
	raced bool
}

func (s *createRaceStore) Save(ctx context.Context, ref state.Ref, records []state.Record, meta state.Meta) (state.Meta, error) {
	if !s.raced {
		s.raced = true
		if _, err := s.Store.Save(ctx, ref, []state.Record{{Option: "readPreference", Value: "SECONDARY"}}, state.Meta{}); err != nil {
			return state.Meta{}, err
		}
	}
	return s.Store.Save(ctx, ref, records, meta)
}

func TestLoaderUpdateRetriesRacingCreate(t *testing.T) {
	ctx := context.Background()
	store := &createRaceStore{Store: state.NewMemoryStore()}
	loader := newLoader(t, store)
	loader.BackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	ref := state.Ref{Domain: "mongodb"}

	calls := 0
	if _, err := loader.Update(ctx, ref, func(records *[]state.Record) error {
		calls++
		*records = append(*records, state.Record{Option: "writeConcern", Value: "MAJORITY"})
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the create to be retried once, got %d attempts", calls)
	}
	records, _, _, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 || records[0].Value != "SECONDARY" {
		t.Fatalf("expected the first create to survive, got %+v", records)
	}
}

func TestLoaderConcurrentUpdatesOnFreshRef(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	loader := newLoader(t, store)
	loader.BackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	ref := state.Ref{Domain: "mongodb"}

	values := []string{"PRIMARY", "SECONDARY"}
	var wg sync.WaitGroup
	errs := make([]error, len(values))
	for i, value := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = loader.Update(ctx, ref, func(records *[]state.Record) error {
				*records = append(*records, state.Record{Option: "readPreference", Value: value})
				return nil
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	records, _, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(records) != 2 {
		t.Fatalf("expected both writers to be kept, got %+v", records)
	}
}

func TestLoaderUpdateStopsOnPermanentErrors(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t, state.NewMemoryStore())
	loader.BackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	calls := 0
	_, err := loader.Update(ctx, state.Ref{Domain: "mongodb"}, func(records *[]state.Record) error {
		calls++
		*records = append(*records, state.Record{Option: "shardKey", Value: "x"})
		return nil
	})
	if !errors.Is(err, opts.ErrUnknownOption) {
		t.Fatalf("expected unknown option, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry, got %d attempts", calls)
	}
}
