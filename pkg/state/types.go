package state

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	opts "github.com/goliatone/go-datastore-options"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies the records of one scope within one domain (usually one
// datastore or tenant). An empty Entity addresses the global scope.
type Ref struct {
	Domain   string
	Entity   string
	Property string
}

// RefFor returns the Ref of scope, naming entities by their qualified Go
// name.
func RefFor(domain string, scope opts.ScopeRef) Ref {
	ref := Ref{Domain: domain}
	if scope.Entity != nil {
		ref.Entity = scope.Entity.String()
	}
	if scope.Kind == opts.ScopeProperty {
		ref.Property = scope.Property
	}
	return ref
}

func (r Ref) Identifier() (string, error) {
	if r.Domain == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	switch {
	case r.Entity == "" && r.Property != "":
		return "", fmt.Errorf("state: property %q requires an entity", r.Property)
	case r.Entity == "":
		return fmt.Sprintf("global/%s", r.Domain), nil
	case r.Property == "":
		return fmt.Sprintf("entity/%s/%s", r.Entity, r.Domain), nil
	default:
		return fmt.Sprintf("property/%s/%s/%s", r.Entity, opts.NormalizePropertyName(r.Property), r.Domain), nil
	}
}

// Record is one persisted declaration. Values are loosely typed, as read
// from a database or a JSON column; they are decoded into the option type
// when loaded.
type Record struct {
	Option     string `json:"option"`
	Identifier any    `json:"identifier,omitempty"`
	Value      any    `json:"value"`
	Element    string `json:"element,omitempty"`
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
	// IfAbsent makes a Save create-only: it fails with ErrETagMismatch
	// when ref already has records. Stores do not persist it.
	IfAbsent bool `json:"-"`
}

// Store loads/saves the records of a single scope reference.
type Store interface {
	Load(ctx context.Context, ref Ref) (records []Record, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, records []Record, meta Meta) (Meta, error)
}

// Catalog resolves record names. settings.Catalog implements it.
type Catalog interface {
	Option(name string) (*opts.OptionKey, bool)
	Entity(name string) (reflect.Type, bool)
}

// Mutator edits the records of one scope in place.
type Mutator func(*[]Record) error
