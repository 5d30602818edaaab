package parse_test

import (
	"strings"
	"testing"

	"github.com/velesk/smetka/pkg/provider/parse"
)

var testCatalog = []parse.CatalogItem{
	{ID: 1, Name: "Полотно матовое", Unit: "м²", Price: 350, Synonyms: []string{"матовый потолок"}},
	{ID: 2, Name: "Светильник точечный", Unit: "шт", Price: 500, Synonyms: []string{"светильник", "точка"}},
	{ID: 3, Name: "Люстра (установка)", Unit: "шт", Price: 1200, Synonyms: []string{"люстра"}},
}

func TestDecodeResult_FencedJSON(t *testing.T) {
	response := "Вот результат:\n```json\n" + `{
  "rooms": [
    {"name": "Кухня", "area": 12, "items": [
      {"price_item_id": 1, "name": "полотно", "unit": "?", "quantity": 12, "price": 1}
    ]}
  ],
  "unknown_items": [{"original_text": "полотно бауф"}]
}` + "\n```"

	res, err := parse.DecodeResult(response, testCatalog)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if len(res.Rooms) != 1 || len(res.Rooms[0].Items) != 1 {
		t.Fatalf("rooms = %+v, want 1 room with 1 item", res.Rooms)
	}

	item := res.Rooms[0].Items[0]
	// Catalog data is authoritative for matched items.
	if item.Name != "Полотно матовое" || item.Unit != "м²" || item.Price != 350 {
		t.Errorf("item = %+v, want catalog name/unit/price", item)
	}
	if item.Sum != 4200 {
		t.Errorf("item.Sum = %v, want 4200", item.Sum)
	}
	if res.TotalArea != 12 || res.TotalSum != 4200 {
		t.Errorf("totals = %v / %v, want 12 / 4200", res.TotalArea, res.TotalSum)
	}
	if len(res.UnknownItems) != 1 || res.UnknownItems[0].OriginalText != "полотно бауф" {
		t.Errorf("unknown items = %+v", res.UnknownItems)
	}
}

func TestDecodeResult_BareStringUnknownItems(t *testing.T) {
	response := `{"rooms": [], "unknown_items": ["полотно бауф", {"original_text": "карниз скрытый"}]}`

	res, err := parse.DecodeResult(response, nil)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if len(res.UnknownItems) != 2 {
		t.Fatalf("unknown items = %+v, want 2", res.UnknownItems)
	}
	if res.UnknownItems[0].OriginalText != "полотно бауф" {
		t.Errorf("first unknown = %q", res.UnknownItems[0].OriginalText)
	}
	if res.UnknownItems[1].OriginalText != "карниз скрытый" {
		t.Errorf("second unknown = %q", res.UnknownItems[1].OriginalText)
	}
}

func TestDecodeResult_Garbage(t *testing.T) {
	if _, err := parse.DecodeResult("I could not parse that, sorry!", nil); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestDecodeResult_UnmatchedItemKeepsOwnFields(t *testing.T) {
	response := `{"rooms": [{"name": "Зал", "area": 0, "items": [
		{"price_item_id": null, "name": "карниз", "unit": "пог.м", "quantity": 4, "price": 250}
	]}]}`

	res, err := parse.DecodeResult(response, testCatalog)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	item := res.Rooms[0].Items[0]
	if item.PriceItemID != nil {
		t.Errorf("PriceItemID = %v, want nil", *item.PriceItemID)
	}
	if item.Name != "карниз" || item.Price != 250 {
		t.Errorf("item = %+v, want model-provided fields kept", item)
	}
	if item.Sum != 1000 {
		t.Errorf("item.Sum = %v, want 1000", item.Sum)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"anonymous fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence with prose", "Результат:\n```json\n{\"a\":1}\n```\nГотово.", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parse.ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	if got := parse.Round2(3.14159); got != 3.14 {
		t.Errorf("Round2(3.14159) = %v", got)
	}
	if got := parse.Round2(2.675); got != 2.68 {
		t.Errorf("Round2(2.675) = %v", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := parse.BuildPrompt("кухня пять метров", testCatalog)

	for _, want := range []string{
		"ПРАЙС-ЛИСТ",
		"- ID:1 | Полотно матовое | м² | 350 руб (синонимы: матовый потолок)",
		`"кухня пять метров"`,
		"unknown_items",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFormatCatalog_PriceFormatting(t *testing.T) {
	out := parse.FormatCatalog([]parse.CatalogItem{
		{ID: 7, Name: "Профиль", Unit: "пог.м", Price: 99.5},
	})
	if !strings.Contains(out, "| 99.5 руб") {
		t.Errorf("catalog line = %q, want price without trailing zeros", out)
	}
}
