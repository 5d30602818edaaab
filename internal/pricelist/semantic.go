package pricelist

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/velesk/smetka/pkg/provider/embeddings"
)

// SemanticIndex suggests catalog replacements for dictated positions the
// parsers could not match by name or synonym. Each catalog item's name and
// synonyms are embedded into a pgvector column; unknown-item text is embedded
// at query time and matched by cosine distance.
//
// This is advisory tooling for the office staff reviewing an estimate, not
// part of the parsing hot path.
type SemanticIndex struct {
	db       DB
	embedder embeddings.Provider
}

// Suggestion pairs a catalog item with its cosine distance to the query text.
// Lower distance means a closer match.
type Suggestion struct {
	Item     Item    `json:"item"`
	Distance float64 `json:"distance"`
}

// NewSemanticIndex creates a SemanticIndex over the given database. The
// pgvector extension must be installed and its types registered on the
// connection (pgxvec.RegisterTypes in the pool's AfterConnect hook).
func NewSemanticIndex(db DB, embedder embeddings.Provider) *SemanticIndex {
	return &SemanticIndex{db: db, embedder: embedder}
}

// Migrate creates the embeddings table and its HNSW index. The vector
// dimension is baked into the column type at creation time and must match
// the embedder's output; changing models requires dropping the table.
func (si *SemanticIndex) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS price_item_embeddings (
    item_id   BIGINT PRIMARY KEY REFERENCES price_items(id) ON DELETE CASCADE,
    embedding vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_item_embeddings_hnsw
    ON price_item_embeddings USING hnsw (embedding vector_cosine_ops);
`, si.embedder.Dimensions())

	if _, err := si.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pricelist: migrate semantic index: %w", err)
	}
	return nil
}

// Index embeds one catalog item and upserts its vector.
func (si *SemanticIndex) Index(ctx context.Context, item Item) error {
	vec, err := si.embedder.Embed(ctx, indexText(item))
	if err != nil {
		return fmt.Errorf("pricelist: embed item %d: %w", item.ID, err)
	}
	const q = `
		INSERT INTO price_item_embeddings (item_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (item_id) DO UPDATE SET embedding = EXCLUDED.embedding`
	if _, err := si.db.Exec(ctx, q, item.ID, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("pricelist: index item %d: %w", item.ID, err)
	}
	return nil
}

// Reindex embeds every item in one batch call and rewrites all vectors.
// Call it after bulk catalog imports or an embedding model change.
func (si *SemanticIndex) Reindex(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = indexText(item)
	}
	vecs, err := si.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("pricelist: embed batch: %w", err)
	}
	for i, item := range items {
		const q = `
			INSERT INTO price_item_embeddings (item_id, embedding)
			VALUES ($1, $2)
			ON CONFLICT (item_id) DO UPDATE SET embedding = EXCLUDED.embedding`
		if _, err := si.db.Exec(ctx, q, item.ID, pgvector.NewVector(vecs[i])); err != nil {
			return fmt.Errorf("pricelist: reindex item %d: %w", item.ID, err)
		}
	}
	return nil
}

// Suggest returns the limit closest active catalog items for the given text,
// ordered by ascending cosine distance.
func (si *SemanticIndex) Suggest(ctx context.Context, text string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}
	vec, err := si.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("pricelist: embed query: %w", err)
	}

	const q = `
		SELECT p.id, p.name, p.unit, p.price, p.synonyms, p.is_active,
		       e.embedding <=> $1 AS distance
		FROM   price_item_embeddings e
		JOIN   price_items p ON p.id = e.item_id
		WHERE  p.is_active
		ORDER  BY distance
		LIMIT  $2`

	rows, err := si.db.Query(ctx, q, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("pricelist: suggest: %w", err)
	}
	suggestions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Suggestion, error) {
		var (
			s        Suggestion
			synonyms string
		)
		if err := row.Scan(
			&s.Item.ID, &s.Item.Name, &s.Item.Unit, &s.Item.Price,
			&synonyms, &s.Item.IsActive, &s.Distance,
		); err != nil {
			return Suggestion{}, err
		}
		s.Item.Synonyms = splitSynonyms(synonyms)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pricelist: suggest: %w", err)
	}
	return suggestions, nil
}

// indexText renders the embedded document for one item: its name plus all
// spoken synonyms.
func indexText(item Item) string {
	if len(item.Synonyms) == 0 {
		return item.Name
	}
	return item.Name + " (" + strings.Join(item.Synonyms, ", ") + ")"
}
