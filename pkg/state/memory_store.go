package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier(). It is meant
// for tests and examples, but honours the same ETag contract a database
// backed store would: a Save carrying an ETag only succeeds while that ETag
// is still current, and every successful Save mints a new one.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	records []Record
	meta    Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) ([]Record, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	stored, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return cloneRecords(stored.records), cloneMeta(stored.meta), true, nil
}

// Save replaces the records of ref. meta.ETag, when set, must match the
// stored ETag, and meta.IfAbsent requires that nothing is stored yet. The
// returned Meta carries the new ETag.
func (s *MemoryStore) Save(_ context.Context, ref Ref, records []Record, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.records[key]; ok {
		if meta.IfAbsent {
			return cloneMeta(current.meta), fmt.Errorf("%w: %s already exists at %q", ErrETagMismatch, key, current.meta.ETag)
		}
		if meta.ETag != "" && meta.ETag != current.meta.ETag {
			return cloneMeta(current.meta), fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.meta.ETag)
		}
	}
	stored := cloneMeta(meta)
	stored.IfAbsent = false
	stored.ETag = ulid.Make().String()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now().UTC()
	}
	s.records[key] = memoryRecord{records: cloneRecords(records), meta: stored}
	return cloneMeta(stored), nil
}

// Keys returns the identifiers of the stored refs, sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
