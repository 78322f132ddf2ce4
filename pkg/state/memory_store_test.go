package state_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-datastore-options/pkg/state"
)

func TestRefIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ref     state.Ref
		want    string
		wantErr bool
	}{
		{name: "global", ref: state.Ref{Domain: "mongodb"}, want: "global/mongodb"},
		{name: "entity", ref: state.Ref{Domain: "mongodb", Entity: "shop.Order"}, want: "entity/shop.Order/mongodb"},
		{name: "property normalised", ref: state.Ref{Domain: "mongodb", Entity: "shop.Order", Property: "Items"}, want: "property/shop.Order/items/mongodb"},
		{name: "missing domain", ref: state.Ref{Entity: "shop.Order"}, wantErr: true},
		{name: "property without entity", ref: state.Ref{Domain: "mongodb", Property: "items"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ref.Identifier()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got identifier %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMemoryStoreRoundTripCopies(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "mongodb", Entity: "shop.Order"}
	records := []state.Record{{Option: "readPreference", Value: "NEAREST"}}
	meta := state.Meta{ETag: "v1", Extra: map[string]string{"by": "ops"}}

	saved, err := store.Save(context.Background(), ref, records, meta)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved.ETag) != 26 {
		t.Fatalf("expected a ULID etag, got %q", saved.ETag)
	}
	if saved.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be stamped")
	}

	records[0].Value = "PRIMARY"
	meta.Extra["by"] = "someone else"

	loaded, loadedMeta, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded[0].Value != "NEAREST" || loadedMeta.Extra["by"] != "ops" {
		t.Fatalf("expected stored copies, got %+v %+v", loaded, loadedMeta)
	}
	if keys := store.Keys(); !reflect.DeepEqual(keys, []string{"entity/shop.Order/mongodb"}) {
		t.Fatalf("unexpected keys %v", keys)
	}

	if _, _, ok, err := store.Load(context.Background(), state.Ref{Domain: "mongodb"}); err != nil || ok {
		t.Fatalf("expected missing ref, got ok=%v err=%v", ok, err)
	}
	if _, _, _, err := store.Load(context.Background(), state.Ref{}); err == nil {
		t.Fatalf("expected invalid ref error")
	}
}

func TestMemoryStoreConditionalSave(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "mongodb"}

	first, err := store.Save(ctx, ref, nil, state.Meta{IfAbsent: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.IfAbsent {
		t.Fatalf("IfAbsent must not be persisted")
	}

	second, err := store.Save(ctx, ref, nil, state.Meta{ETag: first.ETag})
	if err != nil {
		t.Fatalf("conditional save: %v", err)
	}
	if second.ETag == first.ETag {
		t.Fatalf("expected a new etag")
	}

	current, err := store.Save(ctx, ref, nil, state.Meta{ETag: first.ETag})
	if !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected etag mismatch, got %v", err)
	}
	if current.ETag != second.ETag {
		t.Fatalf("expected the current etag %q, got %q", second.ETag, current.ETag)
	}

	if _, err := store.Save(ctx, ref, nil, state.Meta{IfAbsent: true}); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected create-only save to fail on an existing ref, got %v", err)
	}
	if _, err := store.Save(ctx, ref, nil, state.Meta{}); err != nil {
		t.Fatalf("saves without an etag are unconditional: %v", err)
	}
}
