package eststore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the estimate tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS estimates (
    id             BIGSERIAL PRIMARY KEY,
    client_name    TEXT NOT NULL DEFAULT '',
    client_phone   TEXT NOT NULL DEFAULT '',
    client_address TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'draft',
    last_step      INTEGER NOT NULL DEFAULT 0,
    total_area     DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_sum      DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS estimate_rooms (
    id          BIGSERIAL PRIMARY KEY,
    estimate_id BIGINT NOT NULL REFERENCES estimates(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL DEFAULT 0,
    name        TEXT NOT NULL,
    area        DOUBLE PRECISION NOT NULL DEFAULT 0,
    subtotal    DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS estimate_items (
    id            BIGSERIAL PRIMARY KEY,
    room_id       BIGINT NOT NULL REFERENCES estimate_rooms(id) ON DELETE CASCADE,
    position      INTEGER NOT NULL DEFAULT 0,
    price_item_id BIGINT,
    name          TEXT NOT NULL,
    unit          TEXT NOT NULL DEFAULT '',
    quantity      DOUBLE PRECISION NOT NULL DEFAULT 0,
    price         DOUBLE PRECISION NOT NULL DEFAULT 0,
    sum           DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_estimate_rooms_estimate ON estimate_rooms(estimate_id);
CREATE INDEX IF NOT EXISTS idx_estimate_items_room ON estimate_items(room_id);
CREATE INDEX IF NOT EXISTS idx_estimates_status ON estimates(status);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Rooms and items live in
// child tables so the price-catalog references stay queryable.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate] to ensure the
// schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the estimate tables and
// indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("eststore: migrate: %w", err)
	}
	return nil
}

// Create implements [Store.Create]. The estimate header and all rooms and
// items are written in a single transaction.
func (s *PostgresStore) Create(ctx context.Context, payload EstimatePayload) (*Estimate, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("eststore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	subtotals, totalArea, totalSum := Totals(payload)

	const insertEstimate = `
		INSERT INTO estimates (client_name, client_phone, client_address, status, last_step, total_area, total_sum)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, insertEstimate,
		payload.ClientName, payload.ClientPhone, payload.ClientAddress,
		defaultStatus(payload.Status), payload.LastStep, totalArea, totalSum,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("eststore: create: %w", err)
	}

	if err := insertRooms(ctx, tx, id, payload.Rooms, subtotals); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("eststore: commit: %w", err)
	}
	return s.Get(ctx, id)
}

// Update implements [Store.Update]. The previous room and item rows are
// deleted and the payload's rooms are inserted fresh; partial in-place room
// updates are not supported by the wire protocol.
func (s *PostgresStore) Update(ctx context.Context, id int64, payload EstimatePayload) (*Estimate, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("eststore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	subtotals, totalArea, totalSum := Totals(payload)

	const updateEstimate = `
		UPDATE estimates SET
			client_name = $2, client_phone = $3, client_address = $4,
			status = $5, last_step = $6, total_area = $7, total_sum = $8,
			updated_at = now()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, updateEstimate,
		id, payload.ClientName, payload.ClientPhone, payload.ClientAddress,
		defaultStatus(payload.Status), payload.LastStep, totalArea, totalSum,
	)
	if err != nil {
		return nil, fmt.Errorf("eststore: update %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM estimate_rooms WHERE estimate_id = $1`, id); err != nil {
		return nil, fmt.Errorf("eststore: update %d: clear rooms: %w", id, err)
	}
	if err := insertRooms(ctx, tx, id, payload.Rooms, subtotals); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("eststore: commit: %w", err)
	}
	return s.Get(ctx, id)
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Estimate, error) {
	const query = `
		SELECT id, client_name, client_phone, client_address, status, last_step,
		       total_area, total_sum, created_at, updated_at
		FROM estimates
		WHERE id = $1`

	var est Estimate
	err := s.db.QueryRow(ctx, query, id).Scan(
		&est.ID, &est.ClientName, &est.ClientPhone, &est.ClientAddress,
		&est.Status, &est.LastStep, &est.TotalArea, &est.TotalSum,
		&est.CreatedAt, &est.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("eststore: get %d: %w", id, err)
	}

	if err := s.loadRooms(ctx, &est); err != nil {
		return nil, err
	}
	return &est, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Estimate, error) {
	query := `
		SELECT id, client_name, client_phone, client_address, status, last_step,
		       total_area, total_sum, created_at, updated_at
		FROM estimates`
	var args []any
	if opts.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eststore: list: %w", err)
	}
	defer rows.Close()

	var result []Estimate
	for rows.Next() {
		var est Estimate
		if err := rows.Scan(
			&est.ID, &est.ClientName, &est.ClientPhone, &est.ClientAddress,
			&est.Status, &est.LastStep, &est.TotalArea, &est.TotalSum,
			&est.CreatedAt, &est.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("eststore: list scan: %w", err)
		}
		result = append(result, est)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eststore: list: %w", err)
	}

	for i := range result {
		if err := s.loadRooms(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Delete implements [Store.Delete]. Rooms and items cascade.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM estimates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("eststore: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// insertRooms writes the payload's rooms and items for estimate id inside tx.
// subtotals must be the output of [Totals] for the same payload.
func insertRooms(ctx context.Context, tx pgx.Tx, id int64, rooms []RoomPayload, subtotals []float64) error {
	const insertRoom = `
		INSERT INTO estimate_rooms (estimate_id, position, name, area, subtotal)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`
	const insertItem = `
		INSERT INTO estimate_items (room_id, position, price_item_id, name, unit, quantity, price, sum)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	for i, room := range rooms {
		var roomID int64
		if err := tx.QueryRow(ctx, insertRoom, id, i, room.Name, room.Area, subtotals[i]).Scan(&roomID); err != nil {
			return fmt.Errorf("eststore: insert room %q: %w", room.Name, err)
		}
		for j, item := range room.Items {
			sum := item.Quantity * item.Price
			if _, err := tx.Exec(ctx, insertItem,
				roomID, j, item.PriceItemID, item.Name, item.Unit,
				item.Quantity, item.Price, sum,
			); err != nil {
				return fmt.Errorf("eststore: insert item %q: %w", item.Name, err)
			}
		}
	}
	return nil
}

// loadRooms populates est.Rooms (and their items) ordered by position.
func (s *PostgresStore) loadRooms(ctx context.Context, est *Estimate) error {
	const roomQuery = `
		SELECT id, name, area, subtotal
		FROM estimate_rooms
		WHERE estimate_id = $1
		ORDER BY position`

	rows, err := s.db.Query(ctx, roomQuery, est.ID)
	if err != nil {
		return fmt.Errorf("eststore: load rooms for %d: %w", est.ID, err)
	}
	defer rows.Close()

	est.Rooms = nil
	for rows.Next() {
		var room StoredRoom
		if err := rows.Scan(&room.ID, &room.Name, &room.Area, &room.Subtotal); err != nil {
			return fmt.Errorf("eststore: room scan: %w", err)
		}
		est.Rooms = append(est.Rooms, room)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("eststore: load rooms for %d: %w", est.ID, err)
	}

	const itemQuery = `
		SELECT id, price_item_id, name, unit, quantity, price, sum
		FROM estimate_items
		WHERE room_id = $1
		ORDER BY position`

	for i := range est.Rooms {
		itemRows, err := s.db.Query(ctx, itemQuery, est.Rooms[i].ID)
		if err != nil {
			return fmt.Errorf("eststore: load items for room %d: %w", est.Rooms[i].ID, err)
		}
		for itemRows.Next() {
			var item StoredItem
			if err := itemRows.Scan(
				&item.ID, &item.PriceItemID, &item.Name, &item.Unit,
				&item.Quantity, &item.Price, &item.Sum,
			); err != nil {
				itemRows.Close()
				return fmt.Errorf("eststore: item scan: %w", err)
			}
			est.Rooms[i].Items = append(est.Rooms[i].Items, item)
		}
		itemRows.Close()
		if err := itemRows.Err(); err != nil {
			return fmt.Errorf("eststore: load items for room %d: %w", est.Rooms[i].ID, err)
		}
	}
	return nil
}

// defaultStatus returns the status value, defaulting to draft if empty.
func defaultStatus(s Status) Status {
	if s == "" {
		return StatusDraft
	}
	return s
}
