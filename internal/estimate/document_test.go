package estimate_test

import (
	"errors"
	"math"
	"testing"

	"github.com/velesk/smetka/internal/estimate"
	"github.com/velesk/smetka/pkg/provider/parse"
)

func TestAddItem_CreatesRoomAndRecalculates(t *testing.T) {
	doc := estimate.New()

	err := doc.AddItem(estimate.ItemEntry{
		Room:     "Кухня",
		Name:     "Покраска стен",
		Unit:     "м²",
		Quantity: "12",
		Price:    "350",
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	rooms := doc.Rooms()
	if len(rooms) != 1 {
		t.Fatalf("rooms = %d, want 1", len(rooms))
	}
	if rooms[0].Name != "Кухня" {
		t.Errorf("room name = %q, want %q", rooms[0].Name, "Кухня")
	}
	if got := rooms[0].Subtotal; got != 4200 {
		t.Errorf("subtotal = %v, want 4200", got)
	}
	if got := doc.TotalSum(); got != 4200 {
		t.Errorf("TotalSum() = %v, want 4200", got)
	}
}

func TestAddItem_AcceptsDecimalComma(t *testing.T) {
	doc := estimate.New()

	err := doc.AddItem(estimate.ItemEntry{
		Room:     "Ванная",
		Name:     "Плитка",
		Unit:     "м²",
		Quantity: "2,5",
		Price:    "1200,50",
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	item := doc.Rooms()[0].Items[0]
	if item.Quantity != 2.5 {
		t.Errorf("quantity = %v, want 2.5", item.Quantity)
	}
	if item.Price != 1200.50 {
		t.Errorf("price = %v, want 1200.50", item.Price)
	}
	if item.Sum != 2.5*1200.50 {
		t.Errorf("sum = %v, want %v", item.Sum, 2.5*1200.50)
	}
}

func TestAddItem_InvalidInputLeavesDocumentUntouched(t *testing.T) {
	doc := estimate.New()
	if err := doc.AddItem(estimate.ItemEntry{Room: "Кухня", Name: "Покраска", Quantity: "10", Price: "100"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cases := []struct {
		name  string
		entry estimate.ItemEntry
		field string
	}{
		{"non-numeric quantity", estimate.ItemEntry{Room: "Кухня", Name: "X", Quantity: "десять", Price: "100"}, "quantity"},
		{"negative quantity", estimate.ItemEntry{Room: "Кухня", Name: "X", Quantity: "-1", Price: "100"}, "quantity"},
		{"empty quantity", estimate.ItemEntry{Room: "Кухня", Name: "X", Quantity: "", Price: "100"}, "quantity"},
		{"non-numeric price", estimate.ItemEntry{Room: "Кухня", Name: "X", Quantity: "1", Price: "дорого"}, "price"},
		{"negative price", estimate.ItemEntry{Room: "Кухня", Name: "X", Quantity: "1", Price: "-5"}, "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := doc.AddItem(tc.entry)
			var verr *estimate.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	// None of the rejected entries may have altered the document.
	if got := len(doc.Rooms()[0].Items); got != 1 {
		t.Fatalf("items = %d, want 1", got)
	}
	if got := doc.TotalSum(); got != 1000 {
		t.Fatalf("TotalSum() = %v, want 1000", got)
	}
}

func TestAddItem_MatchesRoomCaseInsensitively(t *testing.T) {
	doc := estimate.New()
	mustAdd(t, doc, "Кухня", "Покраска", "1", "100")
	mustAdd(t, doc, "кухня ", "Шпаклёвка", "1", "200")

	rooms := doc.Rooms()
	if len(rooms) != 1 {
		t.Fatalf("rooms = %d, want 1 (case-insensitive match)", len(rooms))
	}
	// First-seen spelling wins for display.
	if rooms[0].Name != "Кухня" {
		t.Errorf("room name = %q, want %q", rooms[0].Name, "Кухня")
	}
	if rooms[0].Subtotal != 300 {
		t.Errorf("subtotal = %v, want 300", rooms[0].Subtotal)
	}
}

func TestMergeProposals_NewAndExistingRooms(t *testing.T) {
	doc := estimate.New()
	mustAdd(t, doc, "Кухня", "Покраска", "1", "100")

	report := doc.MergeProposals([]parse.RoomProposal{
		{
			Name: "кухня",
			Area: 12,
			Items: []parse.ItemProposal{
				{Name: "Шпаклёвка стен", Unit: "м²", Quantity: 12, Price: 250},
			},
		},
		{
			Name: "Ванная",
			Area: 4,
			Items: []parse.ItemProposal{
				{Name: "Укладка плитки", Unit: "м²", Quantity: 4, Price: 1200},
			},
		},
	})

	if report.RoomsAdded != 1 || report.RoomsUpdated != 1 || report.ItemsAdded != 2 {
		t.Fatalf("report = %+v, want 1 added / 1 updated / 2 items", report)
	}

	rooms := doc.Rooms()
	if len(rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(rooms))
	}
	if rooms[0].Area != 12 {
		t.Errorf("kitchen area = %v, want 12 (overwritten by proposal)", rooms[0].Area)
	}
	if got := doc.TotalSum(); got != 100+12*250+4*1200 {
		t.Errorf("TotalSum() = %v, want %v", got, 100+12*250+4*1200)
	}
	if got := doc.TotalArea(); got != 16 {
		t.Errorf("TotalArea() = %v, want 16", got)
	}
}

func TestMergeProposals_ZeroAreaKeepsExisting(t *testing.T) {
	doc := estimate.New()
	doc.MergeProposals([]parse.RoomProposal{{Name: "Кухня", Area: 12}})

	// A later parse that omits the area must not wipe the known one.
	doc.MergeProposals([]parse.RoomProposal{{
		Name:  "Кухня",
		Items: []parse.ItemProposal{{Name: "Покраска", Quantity: 1, Price: 100}},
	}})

	if got := doc.Rooms()[0].Area; got != 12 {
		t.Fatalf("area = %v, want 12", got)
	}
}

func TestMergeProposals_GarbageAreaKeepsExisting(t *testing.T) {
	doc := estimate.New()
	doc.MergeProposals([]parse.RoomProposal{{Name: "Кухня", Area: 20}})

	// A NaN or negative area sanitizes to zero and must behave like an
	// omitted area rather than wiping the known value.
	for _, area := range []float64{math.NaN(), -3} {
		doc.MergeProposals([]parse.RoomProposal{{Name: "Кухня", Area: area}})
		if got := doc.Rooms()[0].Area; got != 20 {
			t.Fatalf("area after merging %v = %v, want 20", area, got)
		}
	}
}

func TestMergeProposals_NeverDeduplicatesItems(t *testing.T) {
	doc := estimate.New()
	proposal := []parse.RoomProposal{{
		Name:  "Кухня",
		Items: []parse.ItemProposal{{Name: "Покраска стен", Unit: "м²", Quantity: 10, Price: 350}},
	}}

	doc.MergeProposals(proposal)
	doc.MergeProposals(proposal)

	if got := len(doc.Rooms()[0].Items); got != 2 {
		t.Fatalf("items = %d, want 2 (repeated mentions kept for human review)", got)
	}
	if got := doc.TotalSum(); got != 7000 {
		t.Fatalf("TotalSum() = %v, want 7000", got)
	}
}

func TestMergeProposals_RejectsBadNumbersIndividually(t *testing.T) {
	doc := estimate.New()

	report := doc.MergeProposals([]parse.RoomProposal{{
		Name: "Кухня",
		Items: []parse.ItemProposal{
			{Name: "Покраска", Quantity: 10, Price: 350},
			{Name: "Мусор", Quantity: -3, Price: 100},
			{Name: "Бесконечность", Quantity: 1, Price: math.Inf(1)},
		},
	}})

	if report.ItemsAdded != 1 {
		t.Errorf("ItemsAdded = %d, want 1", report.ItemsAdded)
	}
	if len(report.Rejected) != 2 {
		t.Fatalf("rejected = %d, want 2", len(report.Rejected))
	}
	if report.Rejected[0].Reason != "quantity is negative" {
		t.Errorf("reason = %q, want %q", report.Rejected[0].Reason, "quantity is negative")
	}
	if got := doc.TotalSum(); got != 3500 {
		t.Fatalf("TotalSum() = %v, want 3500 (only the valid item lands)", got)
	}
}

func TestMergeProposals_SanitizesArea(t *testing.T) {
	doc := estimate.New()
	doc.MergeProposals([]parse.RoomProposal{{Name: "Кухня", Area: math.NaN()}})

	if got := doc.Rooms()[0].Area; got != 0 {
		t.Fatalf("area = %v, want 0 (NaN clamped)", got)
	}
}

func TestClear_ResetsEverything(t *testing.T) {
	doc := estimate.New()
	mustAdd(t, doc, "Кухня", "Покраска", "1", "100")
	doc.SetClientInfo(estimate.ClientInfo{Name: "Анна"})
	doc.SetLastStep(3)

	doc.Clear()

	if len(doc.Rooms()) != 0 || doc.ClientInfo().Name != "" || doc.LastStep() != 0 {
		t.Fatal("Clear() left residual state")
	}
	if _, ok := doc.ID(); ok {
		t.Fatal("Clear() kept the stored identifier")
	}
	if doc.Editing() {
		t.Fatal("Clear() kept editing mode")
	}
}

func mustAdd(t *testing.T, doc *estimate.Document, room, name, quantity, price string) {
	t.Helper()
	if err := doc.AddItem(estimate.ItemEntry{Room: room, Name: name, Quantity: quantity, Price: price}); err != nil {
		t.Fatalf("AddItem(%s/%s): %v", room, name, err)
	}
}
