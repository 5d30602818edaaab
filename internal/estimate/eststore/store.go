// Package eststore persists estimate documents.
//
// The store accepts the wire projection of an in-memory document
// ([EstimatePayload]) and returns the stored representation ([Estimate])
// with identifiers, per-room subtotals, and estimate totals computed on
// the storage side. Clients never send subtotal or sum values; whatever
// optimistic numbers they display are recomputed here from quantity and
// price before the row is written.
package eststore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get, Update, and Delete when no estimate with
// the requested ID exists.
var ErrNotFound = errors.New("estimate not found")

// Status is the persistence status of an estimate.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
)

// IsValid reports whether s is a recognised estimate status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusCompleted, StatusSent, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// ItemPayload is one line item in an outbound estimate write.
// Sum is intentionally absent: it is derived from Quantity and Price.
type ItemPayload struct {
	// PriceItemID references a price-catalog entry. Nil for free-form items.
	PriceItemID *int64 `json:"price_item_id,omitempty"`

	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// RoomPayload is one room in an outbound estimate write.
type RoomPayload struct {
	Name  string        `json:"name"`
	Area  float64       `json:"area"`
	Items []ItemPayload `json:"items"`
}

// EstimatePayload is the wire shape of an estimate write (create or update).
type EstimatePayload struct {
	ClientName    string        `json:"client_name"`
	ClientPhone   string        `json:"client_phone"`
	ClientAddress string        `json:"client_address"`
	Status        Status        `json:"status"`
	LastStep      int           `json:"last_step"`
	Rooms         []RoomPayload `json:"rooms"`
}

// StoredItem is a persisted line item with its computed sum.
type StoredItem struct {
	ID          int64   `json:"id"`
	PriceItemID *int64  `json:"price_item_id,omitempty"`
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Sum         float64 `json:"sum"`
}

// StoredRoom is a persisted room with its computed subtotal.
type StoredRoom struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Area     float64      `json:"area"`
	Subtotal float64      `json:"subtotal"`
	Items    []StoredItem `json:"items"`
}

// Estimate is the stored representation of an estimate document.
type Estimate struct {
	ID            int64        `json:"id"`
	ClientName    string       `json:"client_name"`
	ClientPhone   string       `json:"client_phone"`
	ClientAddress string       `json:"client_address"`
	Status        Status       `json:"status"`
	LastStep      int          `json:"last_step"`
	TotalArea     float64      `json:"total_area"`
	TotalSum      float64      `json:"total_sum"`
	Rooms         []StoredRoom `json:"rooms"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ListOptions narrows the result set of [Store.List].
// All non-zero fields are applied as AND conditions.
type ListOptions struct {
	// Status restricts results to estimates with this status.
	// An empty value matches all statuses.
	Status Status

	// Limit caps the number of returned estimates. Zero means no cap.
	Limit int
}

// Store is the estimate storage collaborator.
//
// All implementations must be safe for concurrent use and must compute
// item sums, room subtotals, and estimate totals from the payload's
// quantity/price/area values rather than trusting client arithmetic.
type Store interface {
	// Create persists a new estimate and returns the stored document
	// including its generated ID.
	Create(ctx context.Context, payload EstimatePayload) (*Estimate, error)

	// Update replaces the estimate with the given ID. The room and item
	// sets are replaced wholesale. Returns [ErrNotFound] when no such
	// estimate exists.
	Update(ctx context.Context, id int64, payload EstimatePayload) (*Estimate, error)

	// Get retrieves an estimate with all rooms and items.
	// Returns [ErrNotFound] when no such estimate exists.
	Get(ctx context.Context, id int64) (*Estimate, error)

	// List returns estimates ordered by creation time, newest first.
	List(ctx context.Context, opts ListOptions) ([]Estimate, error)

	// Delete removes an estimate and all of its rooms and items.
	// Returns [ErrNotFound] when no such estimate exists.
	Delete(ctx context.Context, id int64) error
}

// Totals computes the derived numbers for a payload: per-room subtotals,
// the total area, and the grand total. It is the single place where
// storage-side arithmetic lives so both store implementations agree.
func Totals(payload EstimatePayload) (subtotals []float64, totalArea, totalSum float64) {
	subtotals = make([]float64, len(payload.Rooms))
	for i, room := range payload.Rooms {
		var subtotal float64
		for _, item := range room.Items {
			subtotal += item.Quantity * item.Price
		}
		subtotals[i] = subtotal
		totalArea += room.Area
		totalSum += subtotal
	}
	return subtotals, totalArea, totalSum
}
