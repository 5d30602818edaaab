package pricelist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	embedmock "github.com/velesk/smetka/pkg/provider/embeddings/mock"
)

// execDB is a DB stub that records Exec calls; Query and QueryRow are not
// reachable from the operations under test.
type execDB struct {
	execSQL  []string
	execArgs [][]any
	execErr  error
}

func (db *execDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = append(db.execSQL, sql)
	db.execArgs = append(db.execArgs, args)
	return pgconn.CommandTag{}, db.execErr
}

func (db *execDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (db *execDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func TestIndexText(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want string
	}{
		{
			"name only",
			Item{Name: "Покраска стен"},
			"Покраска стен",
		},
		{
			"with synonyms",
			Item{Name: "Покраска стен", Synonyms: []string{"покрасить", "окраска"}},
			"Покраска стен (покрасить, окраска)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := indexText(tc.item); got != tc.want {
				t.Errorf("indexText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSemanticIndex_MigrateUsesEmbedderDimensions(t *testing.T) {
	db := &execDB{}
	embedder := &embedmock.Provider{DimensionsValue: 768}
	si := NewSemanticIndex(db, embedder)

	if err := si.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.execSQL) != 1 {
		t.Fatalf("exec calls = %d, want 1", len(db.execSQL))
	}
	if !strings.Contains(db.execSQL[0], "vector(768)") {
		t.Errorf("DDL missing vector(768):\n%s", db.execSQL[0])
	}
}

func TestSemanticIndex_IndexEmbedsNameAndSynonyms(t *testing.T) {
	db := &execDB{}
	embedder := &embedmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	si := NewSemanticIndex(db, embedder)

	item := Item{ID: 7, Name: "Монтаж потолка", Synonyms: []string{"потолок"}}
	if err := si.Index(context.Background(), item); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if len(embedder.EmbedCalls) != 1 {
		t.Fatalf("embed calls = %d, want 1", len(embedder.EmbedCalls))
	}
	if got := embedder.EmbedCalls[0].Text; got != "Монтаж потолка (потолок)" {
		t.Errorf("embedded text = %q", got)
	}
	if len(db.execArgs) != 1 || db.execArgs[0][0] != int64(7) {
		t.Fatalf("upsert args = %v, want item ID 7 first", db.execArgs)
	}
}

func TestSemanticIndex_IndexEmbedFailure(t *testing.T) {
	db := &execDB{}
	embedder := &embedmock.Provider{EmbedErr: errors.New("model offline")}
	si := NewSemanticIndex(db, embedder)

	if err := si.Index(context.Background(), Item{ID: 1, Name: "Покраска"}); err == nil {
		t.Fatal("Index must fail when embedding fails")
	}
	if len(db.execSQL) != 0 {
		t.Fatal("no row may be written when embedding fails")
	}
}

func TestSemanticIndex_ReindexBatchesAllItems(t *testing.T) {
	db := &execDB{}
	embedder := &embedmock.Provider{
		EmbedBatchResult: [][]float32{{0.1}, {0.2}, {0.3}},
	}
	si := NewSemanticIndex(db, embedder)

	items := []Item{
		{ID: 1, Name: "Покраска стен"},
		{ID: 2, Name: "Укладка плитки"},
		{ID: 3, Name: "Монтаж потолка"},
	}
	if err := si.Reindex(context.Background(), items); err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	if len(embedder.EmbedBatchCalls) != 1 {
		t.Fatalf("batch calls = %d, want 1 (single provider round-trip)", len(embedder.EmbedBatchCalls))
	}
	if got := len(embedder.EmbedBatchCalls[0].Texts); got != 3 {
		t.Fatalf("batched texts = %d, want 3", got)
	}
	if len(db.execSQL) != 3 {
		t.Fatalf("upserts = %d, want 3", len(db.execSQL))
	}
}

func TestSemanticIndex_ReindexEmptyIsNoOp(t *testing.T) {
	db := &execDB{}
	embedder := &embedmock.Provider{}
	si := NewSemanticIndex(db, embedder)

	if err := si.Reindex(context.Background(), nil); err != nil {
		t.Fatalf("Reindex(nil): %v", err)
	}
	if len(embedder.EmbedBatchCalls) != 0 || len(db.execSQL) != 0 {
		t.Fatal("empty reindex must not touch the provider or the database")
	}
}

func TestSemanticIndex_SuggestEmbedFailure(t *testing.T) {
	db := &execDB{}
	embedder := &embedmock.Provider{EmbedErr: errors.New("model offline")}
	si := NewSemanticIndex(db, embedder)

	if _, err := si.Suggest(context.Background(), "галтель", 5); err == nil {
		t.Fatal("Suggest must fail when the query embedding fails")
	}
}
