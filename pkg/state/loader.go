package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	opts "github.com/goliatone/go-datastore-options"
)

// Loader replays stored records into configuration contexts.
type Loader struct {
	Store   Store
	Catalog Catalog
	// BackOff paces Update retries. Nil uses DefaultBackOff.
	BackOff func() backoff.BackOff
}

// DefaultBackOff retries a conflicting update five times, starting at 10ms.
func DefaultBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 10 * time.Millisecond
	exp.MaxElapsedTime = 2 * time.Second
	return backoff.WithMaxRetries(exp, 5)
}

func (l Loader) check() error {
	if l.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	if l.Catalog == nil {
		return fmt.Errorf("state: catalog is required")
	}
	return nil
}

// Apply declares the records of refs on cfg, in the order of refs. Missing
// refs are skipped.
func (l Loader) Apply(ctx context.Context, cfg *opts.ConfigurationContext, refs ...Ref) error {
	if err := l.check(); err != nil {
		return err
	}
	if err := cfg.Err(); err != nil {
		return err
	}
	for _, ref := range refs {
		records, _, ok, err := l.Store.Load(ctx, ref)
		if err != nil {
			return fmt.Errorf("state: load %+v: %w", ref, err)
		}
		if !ok {
			continue
		}
		scope, err := l.scope(ref)
		if err != nil {
			cfg.Fail(&opts.ConfigurationError{Element: ref.Entity, Err: err})
			return cfg.Err()
		}
		for _, record := range records {
			element, pair, err := l.decode(scope, record)
			if err != nil {
				cfg.Fail(&opts.ConfigurationError{Scope: scope.Identifier(), Option: record.Option, Err: err})
				return cfg.Err()
			}
			cfg.Add(scope, element, pair)
			if err := cfg.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Source applies refs to a fresh context named "state" and returns the
// frozen result as a source.
func (l Loader) Source(ctx context.Context, refs ...Ref) (*opts.ProgrammaticSource, error) {
	appendable := opts.NewAppendableConfigurationContext(opts.WithContextName("state"))
	if err := l.Apply(ctx, opts.NewConfigurationContext(appendable), refs...); err != nil {
		return nil, err
	}
	appendable.Freeze()
	return opts.NewProgrammaticSource(appendable), nil
}

// Save persists the declarations of appendable under domain, one Ref per
// scope. Records of a scope keep their declaration order.
func (l Loader) Save(ctx context.Context, domain string, appendable *opts.AppendableConfigurationContext, meta Meta) ([]Ref, error) {
	if l.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	grouped := map[opts.ScopeRef][]Record{}
	for _, entry := range appendable.Entries() {
		grouped[entry.Scope] = append(grouped[entry.Scope], Record{
			Option:     entry.Pair.Option.Name(),
			Identifier: entry.Pair.Identifier,
			Value:      entry.Pair.Value,
			Element:    entry.Element.String(),
		})
	}
	refs := make([]Ref, 0, len(grouped))
	for _, scope := range appendable.Scopes() {
		ref := RefFor(domain, scope)
		if _, err := l.Store.Save(ctx, ref, grouped[scope], meta); err != nil {
			return nil, fmt.Errorf("state: save %+v: %w", ref, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Mutate loads the records of ref, applies fn, checks that every record
// still decodes, then saves conditionally on the loaded ETag, or on the
// ref still being absent when nothing was loaded. A non-empty
// meta.ETag must match the stored one. The returned Meta carries the ETag
// minted by the store.
func (l Loader) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (Meta, error) {
	if err := l.check(); err != nil {
		return Meta{}, err
	}
	if fn == nil {
		return Meta{}, fmt.Errorf("state: mutator is required")
	}
	scope, err := l.scope(ref)
	if err != nil {
		return Meta{}, err
	}

	records, loadedMeta, ok, err := l.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %+v: %w", ref, err)
	}
	if !ok {
		records = nil
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&records); err != nil {
		return loadedMeta, err
	}
	for _, record := range records {
		if _, _, err := l.decode(scope, record); err != nil {
			return loadedMeta, fmt.Errorf("state: record %s: %w", record.Option, err)
		}
	}

	next := mergeMeta(loadedMeta, meta)
	next.ETag = loadedMeta.ETag
	next.IfAbsent = !ok
	savedMeta, err := l.Store.Save(ctx, ref, records, next)
	if err != nil {
		return loadedMeta, fmt.Errorf("state: save %+v: %w", ref, err)
	}
	return savedMeta, nil
}

// Update is Mutate against whatever version is current, retried while the
// store reports a concurrent write. fn may run more than once and must only
// depend on the records it is given.
func (l Loader) Update(ctx context.Context, ref Ref, fn Mutator) (Meta, error) {
	newBackOff := l.BackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	var saved Meta
	operation := func() error {
		_, current, _, err := l.Store.Load(ctx, ref)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("state: load %+v: %w", ref, err))
		}
		meta, err := l.Mutate(ctx, ref, Meta{ETag: current.ETag}, fn)
		if errors.Is(err, ErrETagMismatch) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		saved = meta
		return nil
	}
	if err := l.check(); err != nil {
		return Meta{}, err
	}
	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return Meta{}, err
	}
	return saved, nil
}

func (l Loader) scope(ref Ref) (opts.ScopeRef, error) {
	if _, err := ref.Identifier(); err != nil {
		return opts.ScopeRef{}, err
	}
	if ref.Entity == "" {
		return opts.GlobalScope(), nil
	}
	t, ok := l.Catalog.Entity(ref.Entity)
	if !ok {
		return opts.ScopeRef{}, fmt.Errorf("%w: %q is not registered", opts.ErrUnknownEntity, ref.Entity)
	}
	if ref.Property == "" {
		return opts.EntityScope(t), nil
	}
	return opts.PropertyScope(t, ref.Property), nil
}

func (l Loader) decode(scope opts.ScopeRef, record Record) (opts.ElementKind, opts.OptionValuePair, error) {
	option, ok := l.Catalog.Option(strings.TrimSpace(record.Option))
	if !ok {
		return 0, opts.OptionValuePair{}, fmt.Errorf("%w: %q is not registered", opts.ErrUnknownOption, record.Option)
	}
	element := opts.ElementType
	if scope.Kind == opts.ScopeProperty {
		kind, err := opts.ParseElementKind(record.Element)
		if err != nil {
			return 0, opts.OptionValuePair{}, err
		}
		if err := opts.ValidateProperty(scope.Entity, scope.Property, kind); err != nil {
			return 0, opts.OptionValuePair{}, err
		}
		element = kind
	}
	pair, err := opts.DecodePair(option, record.Identifier, record.Value)
	if err != nil {
		return 0, opts.OptionValuePair{}, err
	}
	return element, pair, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
