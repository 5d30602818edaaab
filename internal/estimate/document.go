package estimate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/velesk/smetka/internal/estimate/eststore"
	"github.com/velesk/smetka/pkg/provider/parse"
)

// Document is the single in-memory estimate being edited. Create one with
// [New], mutate it through AddItem / MergeProposals / SetClientInfo, and
// persist it through the lifecycle operations in lifecycle.go.
type Document struct {
	id       *int64
	editing  bool
	lastStep int
	client   ClientInfo
	rooms    []Room
}

// New returns an empty document ready for a fresh estimate.
func New() *Document {
	return &Document{}
}

// ID returns the persisted identifier and whether one has been adopted yet.
// Absence of an ID distinguishes create from update semantics.
func (d *Document) ID() (int64, bool) {
	if d.id == nil {
		return 0, false
	}
	return *d.id, true
}

// Editing reports whether the document is bound to a stored estimate,
// i.e. subsequent saves will be updates rather than creates.
func (d *Document) Editing() bool { return d.editing }

// LastStep returns the wizard resume position.
func (d *Document) LastStep() int { return d.lastStep }

// SetLastStep records the wizard resume position; it is persisted opaquely.
func (d *Document) SetLastStep(step int) { d.lastStep = step }

// ClientInfo returns the customer contact fields.
func (d *Document) ClientInfo() ClientInfo { return d.client }

// SetClientInfo replaces the customer contact fields.
func (d *Document) SetClientInfo(info ClientInfo) { d.client = info }

// Rooms returns the document's rooms in order. The returned slice is the
// document's own storage: readers may observe it but must mutate only
// through the documented operations.
func (d *Document) Rooms() []Room { return d.rooms }

// TotalSum returns the grand total across all room subtotals.
func (d *Document) TotalSum() float64 {
	var total float64
	for i := range d.rooms {
		total += d.rooms[i].Subtotal
	}
	return total
}

// TotalArea returns the summed area across all rooms.
func (d *Document) TotalArea() float64 {
	var total float64
	for i := range d.rooms {
		total += d.rooms[i].Area
	}
	return total
}

// ItemEntry is a manually entered line item targeting a room by name.
// Quantity and Price arrive as strings from form input and are coerced;
// both "2.5" and the Russian decimal comma "2,5" are accepted.
type ItemEntry struct {
	Room        string `json:"room"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	PriceItemID *int64 `json:"price_item_id,omitempty"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
}

// AddItem appends a line item to the named room, creating the room (with
// area 0) at the end of the room list when it does not exist yet. A
// non-numeric or negative quantity or price fails with a [*ValidationError]
// and leaves the document untouched. Ends with a full [Document.Recalculate].
func (d *Document) AddItem(entry ItemEntry) error {
	quantity, err := coerceNumber("quantity", entry.Quantity)
	if err != nil {
		return err
	}
	price, err := coerceNumber("price", entry.Price)
	if err != nil {
		return err
	}

	room := d.findRoom(entry.Room)
	if room == nil {
		d.rooms = append(d.rooms, Room{Name: strings.TrimSpace(entry.Room)})
		room = &d.rooms[len(d.rooms)-1]
	}

	room.Items = append(room.Items, LineItem{
		PriceItemID: entry.PriceItemID,
		Name:        entry.Name,
		Unit:        entry.Unit,
		Quantity:    quantity,
		Price:       price,
		Sum:         quantity * price,
	})

	d.Recalculate()
	return nil
}

// Recalculate recomputes every room's subtotal from scratch as
// Σ quantity × price over its items. It must run after any mutation of any
// room's item list and before a reader observes subtotals; the mutating
// operations in this package all call it themselves.
func (d *Document) Recalculate() {
	for i := range d.rooms {
		var subtotal float64
		for _, item := range d.rooms[i].Items {
			subtotal += item.Quantity * item.Price
		}
		d.rooms[i].Subtotal = subtotal
	}
}

// RejectedItem describes a proposal item dropped during a merge.
type RejectedItem struct {
	Room   string `json:"room"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// MergeReport summarises the effect of one [Document.MergeProposals] call.
type MergeReport struct {
	RoomsAdded   int            `json:"rooms_added"`
	RoomsUpdated int            `json:"rooms_updated"`
	ItemsAdded   int            `json:"items_added"`
	Rejected     []RejectedItem `json:"rejected,omitempty"`
}

// MergeProposals reconciles parsed room proposals into the document.
//
// Per proposal: an existing room (matched via [NormalizeRoomName]) gets its
// area overwritten only when the sanitized proposal area is non-zero — a
// parse that omits the area, or emits a NaN or negative one, never zeroes
// out a previously set value — and all
// proposal items appended to the end of its item list. An unmatched proposal
// becomes a brand-new room at the end of the room list. Items are never
// deduplicated: repeated mentions in speech produce repeated lines for a
// human to reconcile visually.
//
// An item with a non-finite or negative quantity or price is rejected
// individually and listed in the report; the rest of the batch still lands.
// One Recalculate pass runs after all proposals are processed.
func (d *Document) MergeProposals(proposals []parse.RoomProposal) MergeReport {
	var report MergeReport

	for _, proposal := range proposals {
		room := d.findRoom(proposal.Name)
		if room == nil {
			d.rooms = append(d.rooms, Room{
				Name: strings.TrimSpace(proposal.Name),
				Area: sanitizeNumber(proposal.Area),
			})
			room = &d.rooms[len(d.rooms)-1]
			report.RoomsAdded++
		} else {
			if area := sanitizeNumber(proposal.Area); area != 0 {
				room.Area = area
			}
			report.RoomsUpdated++
		}

		for _, item := range proposal.Items {
			if reason := invalidItemReason(item); reason != "" {
				report.Rejected = append(report.Rejected, RejectedItem{
					Room:   room.Name,
					Name:   item.Name,
					Reason: reason,
				})
				continue
			}
			room.Items = append(room.Items, LineItem{
				PriceItemID: item.PriceItemID,
				Name:        item.Name,
				Unit:        item.Unit,
				Quantity:    item.Quantity,
				Price:       item.Price,
				Sum:         item.Quantity * item.Price,
			})
			report.ItemsAdded++
		}
	}

	d.Recalculate()
	return report
}

// Payload projects the document into the outbound wire shape with the given
// status tag. Subtotals and sums are omitted — the store recomputes them.
func (d *Document) Payload(status eststore.Status) eststore.EstimatePayload {
	payload := eststore.EstimatePayload{
		ClientName:    d.client.Name,
		ClientPhone:   d.client.Phone,
		ClientAddress: d.client.Address,
		Status:        status,
		LastStep:      d.lastStep,
		Rooms:         make([]eststore.RoomPayload, 0, len(d.rooms)),
	}
	for _, room := range d.rooms {
		wire := eststore.RoomPayload{
			Name:  room.Name,
			Area:  room.Area,
			Items: make([]eststore.ItemPayload, 0, len(room.Items)),
		}
		for _, item := range room.Items {
			wire.Items = append(wire.Items, eststore.ItemPayload{
				PriceItemID: item.PriceItemID,
				Name:        item.Name,
				Unit:        item.Unit,
				Quantity:    item.Quantity,
				Price:       item.Price,
			})
		}
		payload.Rooms = append(payload.Rooms, wire)
	}
	return payload
}

// Clear resets the document to its empty initial shape, including the
// editing flag and step counter. Used when abandoning an edit or starting
// a brand-new estimate.
func (d *Document) Clear() {
	*d = Document{}
}

// findRoom locates a room by normalised name. Returns nil when absent.
func (d *Document) findRoom(name string) *Room {
	key := NormalizeRoomName(name)
	for i := range d.rooms {
		if NormalizeRoomName(d.rooms[i].Name) == key {
			return &d.rooms[i]
		}
	}
	return nil
}

// coerceNumber converts a form input string to a non-negative float.
// The Russian decimal comma is accepted.
func coerceNumber(field, input string) (float64, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
	if trimmed == "" {
		return 0, &ValidationError{Field: field, Reason: "empty value"}
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", input)}
	}
	if v < 0 {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is negative", input)}
	}
	return v, nil
}

// invalidItemReason returns a non-empty reason when a proposal item must be
// rejected instead of merged.
func invalidItemReason(item parse.ItemProposal) string {
	switch {
	case math.IsNaN(item.Quantity) || math.IsInf(item.Quantity, 0):
		return "quantity is not a number"
	case item.Quantity < 0:
		return "quantity is negative"
	case math.IsNaN(item.Price) || math.IsInf(item.Price, 0):
		return "price is not a number"
	case item.Price < 0:
		return "price is negative"
	}
	return ""
}

// sanitizeNumber clamps NaN, infinities, and negatives to zero.
func sanitizeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
