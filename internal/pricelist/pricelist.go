// Package pricelist manages the company's price catalog: the positions a
// measurer can dictate, their units and prices, and the spoken synonyms the
// parsers match against.
//
// The catalog is small (hundreds of rows, not millions) and read-heavy; it is
// loaded in full for every parse request so the parser provider always sees
// the current prices.
package pricelist

import (
	"context"
	"errors"
	"strings"

	"github.com/velesk/smetka/pkg/provider/parse"
)

// ErrNotFound is returned when no catalog item exists with the requested ID.
var ErrNotFound = errors.New("pricelist: item not found")

// Item is one position in the price catalog.
type Item struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Price float64 `json:"price"`

	// Synonyms are alternative spoken names ("точка" for "Светильник
	// точечный"). Stored comma-separated in the database, exposed as a slice.
	Synonyms []string `json:"synonyms,omitempty"`

	// IsActive hides retired positions from parsing without deleting their
	// history.
	IsActive bool `json:"is_active"`
}

// Validate reports whether the item can be stored.
func (it Item) Validate() error {
	var errs []error
	if strings.TrimSpace(it.Name) == "" {
		errs = append(errs, errors.New("pricelist: name must not be empty"))
	}
	if strings.TrimSpace(it.Unit) == "" {
		errs = append(errs, errors.New("pricelist: unit must not be empty"))
	}
	if it.Price < 0 {
		errs = append(errs, errors.New("pricelist: price must not be negative"))
	}
	return errors.Join(errs...)
}

// Store is the persistence interface for the price catalog.
type Store interface {
	// Create stores a new item and returns it with the assigned ID.
	Create(ctx context.Context, item Item) (Item, error)

	// Update replaces the item with the given ID. Returns ErrNotFound if it
	// does not exist.
	Update(ctx context.Context, item Item) (Item, error)

	// Get returns one item by ID, or ErrNotFound.
	Get(ctx context.Context, id int64) (Item, error)

	// List returns items ordered by name. With activeOnly set, retired
	// positions are skipped.
	List(ctx context.Context, activeOnly bool) ([]Item, error)

	// Delete removes an item. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
}

// Catalog converts catalog items to the parser-facing projection. Only
// active items are included.
func Catalog(items []Item) []parse.CatalogItem {
	out := make([]parse.CatalogItem, 0, len(items))
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		out = append(out, parse.CatalogItem{
			ID:       it.ID,
			Name:     it.Name,
			Unit:     it.Unit,
			Price:    it.Price,
			Synonyms: it.Synonyms,
		})
	}
	return out
}

// joinSynonyms flattens the synonym slice for storage.
func joinSynonyms(synonyms []string) string {
	cleaned := make([]string, 0, len(synonyms))
	for _, s := range synonyms {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, ",")
}

// splitSynonyms parses the stored comma-separated synonym list.
func splitSynonyms(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
