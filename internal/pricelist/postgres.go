package pricelist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the price catalog table.
const Schema = `
CREATE TABLE IF NOT EXISTS price_items (
    id        BIGSERIAL PRIMARY KEY,
    name      TEXT NOT NULL,
    unit      TEXT NOT NULL DEFAULT 'шт',
    price     DOUBLE PRECISION NOT NULL DEFAULT 0,
    synonyms  TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_price_items_active ON price_items(is_active);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate] before
// issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pricelist: migrate: %w", err)
	}
	return nil
}

// Create implements [Store].
func (s *PostgresStore) Create(ctx context.Context, item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	const q = `
		INSERT INTO price_items (name, unit, price, synonyms, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := s.db.QueryRow(ctx, q,
		item.Name, item.Unit, item.Price, joinSynonyms(item.Synonyms), item.IsActive,
	).Scan(&item.ID)
	if err != nil {
		return Item{}, fmt.Errorf("pricelist: create: %w", err)
	}
	return item, nil
}

// Update implements [Store].
func (s *PostgresStore) Update(ctx context.Context, item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	const q = `
		UPDATE price_items
		SET    name = $2, unit = $3, price = $4, synonyms = $5, is_active = $6
		WHERE  id = $1`
	tag, err := s.db.Exec(ctx, q,
		item.ID, item.Name, item.Unit, item.Price, joinSynonyms(item.Synonyms), item.IsActive,
	)
	if err != nil {
		return Item{}, fmt.Errorf("pricelist: update %d: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id int64) (Item, error) {
	const q = `SELECT id, name, unit, price, synonyms, is_active FROM price_items WHERE id = $1`
	item, err := scanItem(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("pricelist: get %d: %w", id, err)
	}
	return item, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, activeOnly bool) ([]Item, error) {
	q := `SELECT id, name, unit, price, synonyms, is_active FROM price_items`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY name`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pricelist: list: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, fmt.Errorf("pricelist: list: %w", err)
	}
	return items, nil
}

// Delete implements [Store].
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM price_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pricelist: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item     Item
		synonyms string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.Price, &synonyms, &item.IsActive); err != nil {
		return Item{}, err
	}
	item.Synonyms = splitSynonyms(synonyms)
	return item, nil
}
