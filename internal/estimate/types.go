// Package estimate implements the estimate aggregation engine: the working
// document a user builds room by room, either through manual entry or by
// merging structured proposals parsed from a dictation transcript.
//
// A [Document] is a single-owner, in-memory value. It performs no locking of
// its own — the orchestrating layer (internal/dictation) serialises all
// mutating calls, so at most one mutation completes at a time per document.
package estimate

import (
	"fmt"
	"strings"
)

// ValidationError reports rejected user or parser input. It is returned by
// [Document.AddItem] for non-numeric or negative quantity/price values and
// recorded per item by [Document.MergeProposals].
type ValidationError struct {
	// Field names the offending input ("quantity", "price", "room").
	Field string

	// Reason is a human-readable description of the rejection.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("estimate: invalid %s: %s", e.Field, e.Reason)
}

// ClientInfo holds the customer contact fields of an estimate.
type ClientInfo struct {
	Name    string `json:"client_name"`
	Phone   string `json:"client_phone"`
	Address string `json:"client_address"`
}

// LineItem is one priced unit of work or material within a room.
type LineItem struct {
	// PriceItemID is a weak reference to a price-catalog entry;
	// nil for free-form items.
	PriceItemID *int64 `json:"price_item_id,omitempty"`

	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`

	// Sum is Quantity × Price, denormalised at insertion time for display.
	Sum float64 `json:"sum"`
}

// Room is a named grouping of line items corresponding to a physical space.
type Room struct {
	Name string     `json:"name"`
	Area float64    `json:"area"`
	Items []LineItem `json:"items"`

	// Subtotal is derived: always Σ quantity × price over Items after the
	// last [Document.Recalculate]. Never set it directly.
	Subtotal float64 `json:"subtotal"`
}

// NormalizeRoomName produces the merge key for room matching: surrounding
// whitespace is trimmed and the name is lower-cased. The parser capitalises
// room names inconsistently ("Кухня" vs "кухня"), and collapsing that
// prevents silent duplicate rooms while keeping genuinely different names
// distinct. The first-seen spelling is kept for display.
func NormalizeRoomName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
