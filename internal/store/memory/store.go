// Package memory is an in-process Store used for development, the offline demo and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/entity"
	"github.com/duckmesh/askhr/internal/store"
)

type collectionKey struct {
	tenant uuid.UUID
	entity string
}

type Store struct {
	mu          sync.RWMutex
	collections map[collectionKey][]any
}

func New() *Store {
	return &Store{collections: map[collectionKey][]any{}}
}

func key(tenant uuid.UUID, binding *entity.Binding) collectionKey {
	return collectionKey{tenant: tenant, entity: strings.ToLower(binding.Entity())}
}

// Load returns copies of the stored records so callers never share memory with the store.
func (s *Store) Load(_ context.Context, tenant uuid.UUID, binding *entity.Binding) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.collections[key(tenant, binding)]
	out := make([]any, 0, len(stored))
	for _, record := range stored {
		out = append(out, binding.Clone(record))
	}
	return out, nil
}

func (s *Store) Insert(_ context.Context, tenant uuid.UUID, binding *entity.Binding, record any) error {
	if binding.Has(store.TenantField) {
		if err := binding.Set(record, store.TenantField, tenant); err != nil {
			return fmt.Errorf("stamp tenant: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tenant, binding)
	if pk := binding.PrimaryKey(record); pk != nil {
		for _, existing := range s.collections[k] {
			if binding.PrimaryKey(existing) == pk {
				return fmt.Errorf("insert %s: duplicate primary key %v", binding.Entity(), pk)
			}
		}
	}
	s.collections[k] = append(s.collections[k], binding.Clone(record))
	return nil
}

// Update applies every change to a working copy first so a failing mutator leaves the collection
// untouched.
func (s *Store) Update(_ context.Context, tenant uuid.UUID, binding *entity.Binding, match store.Matcher, apply store.Mutator) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tenant, binding)
	stored := s.collections[k]
	next := make([]any, len(stored))
	affected := 0
	for index, record := range stored {
		if !match(record) {
			next[index] = record
			continue
		}
		working := binding.Clone(record)
		if err := apply(working); err != nil {
			return 0, fmt.Errorf("update %s: %w", binding.Entity(), err)
		}
		next[index] = working
		affected++
	}
	s.collections[k] = next
	return affected, nil
}

func (s *Store) Delete(_ context.Context, tenant uuid.UUID, binding *entity.Binding, match store.Matcher) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tenant, binding)
	stored := s.collections[k]
	kept := make([]any, 0, len(stored))
	for _, record := range stored {
		if match(record) {
			continue
		}
		kept = append(kept, record)
	}
	s.collections[k] = kept
	return len(stored) - len(kept), nil
}

func (s *Store) HealthCheck(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Count reports how many records a tenant holds for an entity.
func (s *Store) Count(tenant uuid.UUID, binding *entity.Binding) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[key(tenant, binding)])
}
