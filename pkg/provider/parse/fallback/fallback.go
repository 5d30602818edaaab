// Package fallback provides a local parse.Provider that needs no network.
//
// It is a pattern-matching parser used when no LLM backend is configured or
// when the configured backend fails: room names are recognised from a fixed
// vocabulary, catalog positions are matched by name and synonym (longest
// phrase first), and small transcription misspellings are tolerated with a
// Levenshtein distance check. The output is deliberately conservative; it is
// a safety net, not a replacement for the model-backed parsers.
package fallback

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/velesk/smetka/pkg/provider/parse"
)

// Compile-time assertion that Parser implements parse.Provider.
var _ parse.Provider = (*Parser)(nil)

// defaultRoomName labels the single room created when the dictation never
// names one.
const defaultRoomName = "Основная"

// roomWords is the recognised room vocabulary.
var roomWords = []string{
	"гостиная", "кухня", "спальня", "ванная", "коридор",
	"холл", "детская", "кабинет", "зал", "комната",
}

// roomPattern matches "<room> 15", "<room>: 15,5", "<room> - 15 м2" and the
// like. The area unit suffix is optional.
var roomPattern = regexp.MustCompile(
	`(` + strings.Join(roomWords, "|") + `)\s*[:\-]?\s*(\d+(?:[.,]\d+)?)\s*(?:кв(?:адрат|\.?\s*м)|м2|м²|квадрат)?`,
)

// number matches a quantity with an optional decimal part, comma or dot.
var number = `(\d+(?:[.,]\d+)?)`

// Parser implements parse.Provider with local pattern matching.
type Parser struct {
	// maxDistance caps the Levenshtein distance for fuzzy key matching.
	// Zero disables the fuzzy pass.
	maxDistance int
}

// Option is a functional option for Parser.
type Option func(*Parser)

// WithMaxDistance sets the maximum Levenshtein distance tolerated when
// matching transcript words against catalog keys. Defaults to 1.
func WithMaxDistance(d int) Option {
	return func(p *Parser) { p.maxDistance = d }
}

// New creates a fallback Parser.
func New(opts ...Option) *Parser {
	p := &Parser{maxDistance: 1}
	for _, o := range opts {
		o(p)
	}
	return p
}

// span is a half-open byte range [start, end) in the lowercased transcript.
type span struct{ start, end int }

// matcher tracks consumed text ranges so one mention never produces two items.
type matcher struct {
	used []span
}

func (m *matcher) overlaps(s span) bool {
	for _, u := range m.used {
		if s.start < u.end && u.start < s.end {
			return true
		}
	}
	return false
}

func (m *matcher) claim(s span) { m.used = append(m.used, s) }

// Parse implements parse.Provider.
//
// All parsed items go into the first recognised room; splitting items across
// rooms by dictation order is the LLM parsers' job. Catalog items measured in
// square metres inherit the room's area as their quantity when one is known.
func (p *Parser) Parse(_ context.Context, transcript string, catalog []parse.CatalogItem) (*parse.Result, error) {
	text := strings.ToLower(transcript)
	m := &matcher{}

	rooms := p.findRooms(text, m)
	items := p.findItems(text, m, catalog)

	if len(rooms) == 0 {
		rooms = []parse.RoomProposal{{Name: defaultRoomName}}
	}

	first := &rooms[0]
	for _, item := range items {
		if item.Unit == "м²" && first.Area > 0 {
			item.Quantity = first.Area
		}
		first.Items = append(first.Items, item)
	}

	res := &parse.Result{Rooms: rooms}
	parse.Finalize(res, catalog)
	return res, nil
}

// findRooms extracts room/area pairs. The first mention of a room name wins.
func (p *Parser) findRooms(text string, m *matcher) []parse.RoomProposal {
	var rooms []parse.RoomProposal
	seen := map[string]bool{}

	for _, loc := range roomPattern.FindAllStringSubmatchIndex(text, -1) {
		s := span{loc[0], loc[1]}
		if m.overlaps(s) {
			continue
		}
		name := capitalize(text[loc[2]:loc[3]])
		if seen[name] {
			continue
		}
		area, err := parseNumber(text[loc[4]:loc[5]])
		if err != nil {
			continue
		}
		seen[name] = true
		m.claim(s)
		rooms = append(rooms, parse.RoomProposal{Name: name, Area: area})
	}
	return rooms
}

// catalogKey is one searchable name or synonym pointing at a catalog entry.
type catalogKey struct {
	key  string
	item parse.CatalogItem
}

// findItems matches catalog positions in the transcript. Longest keys are
// tried first so "потолок матовый" wins over "потолок". Each key is tried
// with a quantity before it, a quantity after it, then as a bare mention
// (which means quantity 1), and finally fuzzily against single words.
func (p *Parser) findItems(text string, m *matcher, catalog []parse.CatalogItem) []parse.ItemProposal {
	keys := collectKeys(catalog)
	var items []parse.ItemProposal

	for _, ck := range keys {
		quoted := regexp.QuoteMeta(ck.key)
		qtyBefore := regexp.MustCompile(number + `\s*(?:шт|пог\.?|м\.?|м2)?\s*[\-xх\*]?\s*` + quoted)
		qtyAfter := regexp.MustCompile(quoted + `\s*[:\-]?\s*` + number)

		found := false
		for _, re := range []*regexp.Regexp{qtyBefore, qtyAfter} {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				s := span{loc[0], loc[1]}
				if m.overlaps(s) || !wordBounded(text, s) {
					continue
				}
				qty, err := parseNumber(text[loc[2]:loc[3]])
				if err != nil {
					continue
				}
				m.claim(s)
				items = append(items, makeItem(ck.item, qty))
				found = true
			}
		}
		if found {
			continue
		}

		// Bare mention: "люстра" without a number usually means one.
		bare := regexp.MustCompile(quoted)
		for _, loc := range bare.FindAllStringIndex(text, -1) {
			s := span{loc[0], loc[1]}
			if m.overlaps(s) || !wordBounded(text, s) {
				continue
			}
			m.claim(s)
			items = append(items, makeItem(ck.item, 1))
			found = true
		}
		if found || p.maxDistance <= 0 || strings.ContainsRune(ck.key, ' ') {
			continue
		}

		// Fuzzy pass for single-word keys: tolerate Russian case endings and
		// small transcription misspellings ("люстру", "светильников"). Longer
		// keys get one extra edit of slack for their inflected forms.
		tolerance := p.maxDistance
		if len([]rune(ck.key)) >= 8 {
			tolerance++
		}
		for _, w := range words(text) {
			if m.overlaps(w) {
				continue
			}
			word := text[w.start:w.end]
			if abs(len([]rune(word))-len([]rune(ck.key))) > tolerance {
				continue
			}
			if matchr.Levenshtein(word, ck.key) > tolerance {
				continue
			}
			qty, qtySpan, ok := adjacentNumber(text, w)
			if !ok || m.overlaps(qtySpan) {
				qty = 1
			} else {
				m.claim(qtySpan)
			}
			m.claim(w)
			items = append(items, makeItem(ck.item, qty))
		}
	}
	return items
}

// collectKeys flattens catalog names and synonyms into searchable keys,
// longest first. Synonyms shorter than three characters are skipped as too
// noisy to match safely.
func collectKeys(catalog []parse.CatalogItem) []catalogKey {
	seen := map[string]bool{}
	var keys []catalogKey
	for _, item := range catalog {
		name := strings.ToLower(strings.TrimSpace(item.Name))
		if name != "" && !seen[name] {
			seen[name] = true
			keys = append(keys, catalogKey{key: name, item: item})
		}
		for _, syn := range item.Synonyms {
			s := strings.ToLower(strings.TrimSpace(syn))
			if len([]rune(s)) <= 2 || seen[s] {
				continue
			}
			seen[s] = true
			keys = append(keys, catalogKey{key: s, item: item})
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return len(keys[i].key) > len(keys[j].key)
	})
	return keys
}

func makeItem(entry parse.CatalogItem, qty float64) parse.ItemProposal {
	id := entry.ID
	return parse.ItemProposal{
		PriceItemID: &id,
		Name:        entry.Name,
		Unit:        entry.Unit,
		Quantity:    qty,
		Price:       entry.Price,
		Sum:         parse.Round2(qty * entry.Price),
	}
}

// wordBounded reports whether the match at s is not embedded in a longer
// word. Go's \b only understands ASCII word characters, so Cyrillic
// boundaries are checked by hand.
func wordBounded(text string, s span) bool {
	before := []rune(text[:s.start])
	if len(before) > 0 {
		if r := before[len(before)-1]; unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	after := []rune(text[s.end:])
	if len(after) > 0 {
		if r := after[0]; unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// words splits text into letter runs with their byte spans.
func words(text string) []span {
	var out []span
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(text)})
	}
	return out
}

// numberBefore matches a quantity and separators at the end of the text
// preceding a fuzzy word match, e.g. "6 " or "4 - " in "4 - светильника".
var numberBefore = regexp.MustCompile(number + `\s*(?:шт|пог\.?|м\.?|м2)?\s*[\-xх\*]?\s*$`)

// numberAfter matches a quantity right after a fuzzy word match.
var numberAfter = regexp.MustCompile(`^\s*[:\-]?\s*` + number)

// adjacentNumber looks for a quantity immediately before or after the word
// at span w.
func adjacentNumber(text string, w span) (float64, span, bool) {
	if loc := numberBefore.FindStringSubmatchIndex(text[:w.start]); loc != nil {
		if qty, err := parseNumber(text[loc[2]:loc[3]]); err == nil {
			return qty, span{loc[0], w.start}, true
		}
	}
	if loc := numberAfter.FindStringSubmatchIndex(text[w.end:]); loc != nil {
		if qty, err := parseNumber(text[w.end+loc[2] : w.end+loc[3]]); err == nil {
			return qty, span{w.end + loc[0], w.end + loc[1]}, true
		}
	}
	return 0, span{}, false
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
