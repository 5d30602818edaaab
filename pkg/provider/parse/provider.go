// Package parse defines the transcript parsing collaborator: a provider
// that turns a plain-text room-by-room dictation into structured room and
// line-item proposals, matched against the company's price catalog.
//
// Implementations live in subpackages:
//   - openrouter: an OpenAI-compatible chat model prompted with the price list
//   - anyllm: the same prompt through any-llm-go's multi-provider backends
//   - fallback: a local pattern-matching parser that needs no network
//   - mock: a configurable test double
package parse

import "context"

// CatalogItem is the parser-facing projection of one price-catalog entry.
// Synonyms are alternative spoken names for the same work or material.
type CatalogItem struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Unit     string   `json:"unit"`
	Price    float64  `json:"price"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// ItemProposal is one parsed line item within a room proposal.
type ItemProposal struct {
	// PriceItemID references the matched catalog entry, nil when the
	// model produced a free-form item.
	PriceItemID *int64 `json:"price_item_id"`

	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`

	// Sum is quantity × price, precomputed for optimistic display.
	Sum float64 `json:"sum"`
}

// RoomProposal is one parsed room with its items. Area is zero when the
// dictation did not mention one.
type RoomProposal struct {
	Name  string         `json:"name"`
	Area  float64        `json:"area"`
	Items []ItemProposal `json:"items"`
}

// UnknownItem reports a mentioned position that could not be matched to the
// catalog, so a human can add it to the price list or pick a replacement.
type UnknownItem struct {
	OriginalText      string  `json:"original_text"`
	SuggestedQuantity float64 `json:"suggested_quantity,omitempty"`
	SuggestedUnit     string  `json:"suggested_unit,omitempty"`
}

// Result is the structured outcome of parsing one transcript.
type Result struct {
	Rooms        []RoomProposal `json:"rooms"`
	UnknownItems []UnknownItem  `json:"unknown_items"`
	TotalArea    float64        `json:"total_area"`
	TotalSum     float64        `json:"total_sum"`
}

// Provider converts a transcript into room/item proposals.
//
// catalog is the active price list; implementations match mentioned
// positions against it by name or synonym and take the catalog's
// name/unit/price as authoritative for matched items.
type Provider interface {
	Parse(ctx context.Context, transcript string, catalog []CatalogItem) (*Result, error)
}
