package pricelist

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory [Store] for tests and single-binary demos.
// Safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	items  map[int64]Item
	nextID int64
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory catalog.
func NewMemStore() *MemStore {
	return &MemStore{items: map[int64]Item{}, nextID: 1}
}

// Create implements [Store].
func (s *MemStore) Create(_ context.Context, item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID
	s.nextID++
	s.items[item.ID] = item
	return item, nil
}

// Update implements [Store].
func (s *MemStore) Update(_ context.Context, item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return Item{}, ErrNotFound
	}
	s.items[item.ID] = item
	return item, nil
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, id int64) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context, activeOnly bool) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if activeOnly && !item.IsActive {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete implements [Store].
func (s *MemStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
