package estimate

import (
	"context"
	"fmt"

	"github.com/velesk/smetka/internal/estimate/eststore"
)

// Create persists the document as a new completed estimate, regardless of
// whether an ID is already held, adopts the returned identifier, and
// switches the document into editing mode so subsequent saves are updates.
func (d *Document) Create(ctx context.Context, store eststore.Store) (*eststore.Estimate, error) {
	stored, err := store.Create(ctx, d.Payload(eststore.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("estimate: create: %w", err)
	}
	d.adopt(stored.ID)
	return stored, nil
}

// Update persists the document over its stored counterpart with status
// completed. When no identifier is held yet the call is a silent no-op and
// returns (nil, nil).
func (d *Document) Update(ctx context.Context, store eststore.Store) (*eststore.Estimate, error) {
	if d.id == nil {
		return nil, nil
	}
	stored, err := store.Update(ctx, *d.id, d.Payload(eststore.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("estimate: update %d: %w", *d.id, err)
	}
	return stored, nil
}

// SaveDraft persists the document with status draft, creating or updating
// based on identifier presence and adopting the identifier on a fresh
// create. A document with no client name and zero rooms is considered empty
// and the call is a silent no-op returning (nil, nil) — this keeps an idle
// auto-save timer from littering storage with blank drafts.
func (d *Document) SaveDraft(ctx context.Context, store eststore.Store) (*eststore.Estimate, error) {
	if d.client.Name == "" && len(d.rooms) == 0 {
		return nil, nil
	}

	payload := d.Payload(eststore.StatusDraft)
	if d.id != nil {
		stored, err := store.Update(ctx, *d.id, payload)
		if err != nil {
			return nil, fmt.Errorf("estimate: save draft %d: %w", *d.id, err)
		}
		return stored, nil
	}

	stored, err := store.Create(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("estimate: save draft: %w", err)
	}
	d.adopt(stored.ID)
	return stored, nil
}

// Load fetches a stored estimate and fully replaces the in-memory rooms,
// client info, and step counter, entering editing mode. Numeric fields are
// normalised defensively: NaN and negative values are clamped and a missing
// item sum is recomputed from quantity × price, guarding against partially
// migrated or hand-edited stored documents.
func (d *Document) Load(ctx context.Context, store eststore.Store, id int64) error {
	stored, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("estimate: load %d: %w", id, err)
	}

	d.client = ClientInfo{
		Name:    stored.ClientName,
		Phone:   stored.ClientPhone,
		Address: stored.ClientAddress,
	}
	d.lastStep = stored.LastStep
	d.rooms = make([]Room, 0, len(stored.Rooms))

	for _, room := range stored.Rooms {
		loaded := Room{
			Name: room.Name,
			Area: sanitizeNumber(room.Area),
		}
		for _, item := range room.Items {
			quantity := sanitizeNumber(item.Quantity)
			price := sanitizeNumber(item.Price)
			sum := sanitizeNumber(item.Sum)
			if sum == 0 {
				sum = quantity * price
			}
			loaded.Items = append(loaded.Items, LineItem{
				PriceItemID: item.PriceItemID,
				Name:        item.Name,
				Unit:        item.Unit,
				Quantity:    quantity,
				Price:       price,
				Sum:         sum,
			})
		}
		d.rooms = append(d.rooms, loaded)
	}

	d.adopt(stored.ID)
	d.Recalculate()
	return nil
}

// adopt binds the document to a stored identifier and enters editing mode.
func (d *Document) adopt(id int64) {
	d.id = &id
	d.editing = true
}
