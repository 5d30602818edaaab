package eststore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-process use and testing.
type MemStore struct {
	mu        sync.RWMutex
	estimates map[int64]*Estimate
	nextID    int64
	nextRowID int64
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{estimates: make(map[int64]*Estimate)}
}

// Create implements [Store.Create].
func (s *MemStore) Create(ctx context.Context, payload EstimatePayload) (*Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now()
	est := s.materialize(s.nextID, payload)
	est.CreatedAt = now
	est.UpdatedAt = now
	s.estimates[est.ID] = est
	return copyEstimate(est), nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, id int64, payload EstimatePayload) (*Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.estimates[id]
	if !ok {
		return nil, ErrNotFound
	}
	est := s.materialize(id, payload)
	est.CreatedAt = prev.CreatedAt
	est.UpdatedAt = time.Now()
	s.estimates[id] = est
	return copyEstimate(est), nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id int64) (*Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	est, ok := s.estimates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEstimate(est), nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context, opts ListOptions) ([]Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Estimate, 0, len(s.estimates))
	for _, est := range s.estimates {
		if opts.Status != "" && est.Status != opts.Status {
			continue
		}
		result = append(result, *copyEstimate(est))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.estimates[id]; !ok {
		return ErrNotFound
	}
	delete(s.estimates, id)
	return nil
}

// materialize builds the stored representation of payload, computing item
// sums, room subtotals, and estimate totals. Caller must hold the write lock.
func (s *MemStore) materialize(id int64, payload EstimatePayload) *Estimate {
	subtotals, totalArea, totalSum := Totals(payload)

	est := &Estimate{
		ID:            id,
		ClientName:    payload.ClientName,
		ClientPhone:   payload.ClientPhone,
		ClientAddress: payload.ClientAddress,
		Status:        payload.Status,
		LastStep:      payload.LastStep,
		TotalArea:     totalArea,
		TotalSum:      totalSum,
	}
	if est.Status == "" {
		est.Status = StatusDraft
	}

	for i, room := range payload.Rooms {
		s.nextRowID++
		stored := StoredRoom{
			ID:       s.nextRowID,
			Name:     room.Name,
			Area:     room.Area,
			Subtotal: subtotals[i],
		}
		for _, item := range room.Items {
			s.nextRowID++
			stored.Items = append(stored.Items, StoredItem{
				ID:          s.nextRowID,
				PriceItemID: item.PriceItemID,
				Name:        item.Name,
				Unit:        item.Unit,
				Quantity:    item.Quantity,
				Price:       item.Price,
				Sum:         item.Quantity * item.Price,
			})
		}
		est.Rooms = append(est.Rooms, stored)
	}
	return est
}

// copyEstimate returns a deep copy so callers cannot mutate stored state.
func copyEstimate(est *Estimate) *Estimate {
	cp := *est
	cp.Rooms = make([]StoredRoom, len(est.Rooms))
	for i, room := range est.Rooms {
		cp.Rooms[i] = room
		cp.Rooms[i].Items = make([]StoredItem, len(room.Items))
		copy(cp.Rooms[i].Items, room.Items)
		for j, item := range room.Items {
			if item.PriceItemID != nil {
				id := *item.PriceItemID
				cp.Rooms[i].Items[j].PriceItemID = &id
			}
		}
	}
	return &cp
}
