package parse

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the parsing instruction for an LLM backend: the active
// price list, the transcript, and the strict JSON response contract. All
// model-backed providers share this prompt so their outputs stay comparable.
func BuildPrompt(transcript string, catalog []CatalogItem) string {
	var b strings.Builder
	b.WriteString("Ты — система для парсинга голосовых записей замерщиков натяжных потолков.\n\n")
	b.WriteString("ПРАЙС-ЛИСТ (доступные позиции):\n")
	b.WriteString(FormatCatalog(catalog))
	b.WriteString("\n\nТРАНСКРИПЦИЯ ЗАМЕРА:\n")
	fmt.Fprintf(&b, "%q\n\n", transcript)
	b.WriteString(`ЗАДАЧА:
1. Извлеки все упомянутые комнаты и позиции
2. Сопоставь каждую позицию с прайс-листом по названию или синонимам
3. ВАЖНО: Если позиция упомянута, но НЕ найдена в прайс-листе — ОБЯЗАТЕЛЬНО добавь её в unknown_items с полем original_text

ФОРМАТ ОТВЕТА (строго JSON):
{
  "rooms": [
    {
      "name": "название комнаты",
      "area": площадь_число,
      "items": [
        {
          "price_item_id": ID_из_прайса_или_null,
          "name": "название позиции",
          "unit": "ед.изм",
          "quantity": количество_число,
          "price": цена_число
        }
      ]
    }
  ],
  "unknown_items": [
    { "original_text": "Название ненайденной позиции" }
  ]
}

ПРИМЕР: Если упомянуто "полотно бауф" но в прайсе нет такой позиции, добавь:
"unknown_items": [{"original_text": "полотно бауф"}]
`)
	return b.String()
}

// FormatCatalog renders the price list as one bullet line per entry, the way
// the prompt expects it.
func FormatCatalog(catalog []CatalogItem) string {
	lines := make([]string, 0, len(catalog))
	for _, item := range catalog {
		line := fmt.Sprintf("- ID:%d | %s | %s | %s руб", item.ID, item.Name, item.Unit, formatPrice(item.Price))
		if len(item.Synonyms) > 0 {
			line += fmt.Sprintf(" (синонимы: %s)", strings.Join(item.Synonyms, ", "))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatPrice prints a price without trailing zeros: 350, 1200.5, 99.99.
func formatPrice(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
