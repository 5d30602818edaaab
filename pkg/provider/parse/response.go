package parse

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// wireResult mirrors the JSON the model is asked to produce. unknown_items
// entries arrive either as objects or as bare strings depending on the
// model's mood, so they are kept raw and sanitised afterwards.
type wireResult struct {
	Rooms        []RoomProposal    `json:"rooms"`
	UnknownItems []json.RawMessage `json:"unknown_items"`
}

// DecodeResult parses a model response into a [Result]. It strips Markdown
// code fences, tolerates unknown-item entries that are bare strings, and
// normalises the result against the catalog via [Finalize].
func DecodeResult(text string, catalog []CatalogItem) (*Result, error) {
	clean := ExtractJSON(text)

	var wire wireResult
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return nil, fmt.Errorf("parse: decode model response: %w", err)
	}

	res := &Result{Rooms: wire.Rooms}
	for _, raw := range wire.UnknownItems {
		var item UnknownItem
		if err := json.Unmarshal(raw, &item); err == nil && item.OriginalText != "" {
			res.UnknownItems = append(res.UnknownItems, item)
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			res.UnknownItems = append(res.UnknownItems, UnknownItem{OriginalText: s})
		}
	}

	Finalize(res, catalog)
	return res, nil
}

// ExtractJSON returns the JSON body of a model response, stripping a
// surrounding ```json or ``` code fence when present.
func ExtractJSON(text string) string {
	clean := strings.TrimSpace(text)
	if idx := strings.Index(clean, "```json"); idx >= 0 {
		clean = clean[idx+len("```json"):]
		if end := strings.Index(clean, "```"); end >= 0 {
			clean = clean[:end]
		}
		return strings.TrimSpace(clean)
	}
	if idx := strings.Index(clean, "```"); idx >= 0 {
		clean = clean[idx+len("```"):]
		if end := strings.Index(clean, "```"); end >= 0 {
			clean = clean[:end]
		}
		return strings.TrimSpace(clean)
	}
	return clean
}

// Finalize normalises a decoded result in place: matched items take the
// catalog's name, unit, and price as authoritative, item sums are recomputed
// and rounded to kopecks, and the totals are refreshed.
func Finalize(res *Result, catalog []CatalogItem) {
	byID := make(map[int64]CatalogItem, len(catalog))
	for _, entry := range catalog {
		byID[entry.ID] = entry
	}

	res.TotalArea = 0
	res.TotalSum = 0
	for ri := range res.Rooms {
		room := &res.Rooms[ri]
		res.TotalArea += room.Area
		for ii := range room.Items {
			item := &room.Items[ii]
			if item.PriceItemID != nil {
				if entry, ok := byID[*item.PriceItemID]; ok {
					item.Name = entry.Name
					item.Unit = entry.Unit
					item.Price = entry.Price
				}
			}
			item.Sum = Round2(item.Quantity * item.Price)
			res.TotalSum += item.Sum
		}
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
