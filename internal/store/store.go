package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/itemwatch/internal/types"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when an id has no stored description.
var ErrNotFound = errors.New("description not found")

// Store manages the PostgreSQL connection used as a shared description cache.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the description table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS item_descriptions (
			id BIGINT PRIMARY KEY,
			position INT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			quote TEXT NOT NULL DEFAULT '',
			paragraphs TEXT[] NOT NULL DEFAULT '{}',
			fetched_at TIMESTAMPTZ DEFAULT NOW()
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveDescriptions replaces the stored set with items in a single transaction.
func (s *Store) SaveDescriptions(ctx context.Context, items []types.Description) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM item_descriptions"); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, d := range items {
		paragraphs := d.Paragraphs
		if paragraphs == nil {
			paragraphs = []string{}
		}
		batch.Queue(`
			INSERT INTO item_descriptions (id, position, kind, title, quote, paragraphs)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				position = EXCLUDED.position, kind = EXCLUDED.kind, title = EXCLUDED.title,
				quote = EXCLUDED.quote, paragraphs = EXCLUDED.paragraphs, fetched_at = NOW()
		`, int64(d.ID), i, d.Kind.String(), d.Title, d.Quote, paragraphs)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert descriptions: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadDescriptions returns every stored description in the order it was saved.
func (s *Store) LoadDescriptions(ctx context.Context) ([]types.Description, error) {
	rows, err := s.conn.Query(ctx, "SELECT id, kind, title, quote, paragraphs FROM item_descriptions ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Description
	for rows.Next() {
		d, err := scanDescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// GetDescription returns the description stored for a unique id.
func (s *Store) GetDescription(ctx context.Context, id uint32) (types.Description, error) {
	row := s.conn.QueryRow(ctx, "SELECT id, kind, title, quote, paragraphs FROM item_descriptions WHERE id = $1", int64(id))
	d, err := scanDescription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Description{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return d, err
}

func scanDescription(row pgx.Row) (types.Description, error) {
	var (
		d    types.Description
		id   int64
		kind string
	)
	if err := row.Scan(&id, &kind, &d.Title, &d.Quote, &d.Paragraphs); err != nil {
		return d, err
	}
	d.ID = uint32(id)
	if kind == types.Trinket.String() {
		d.Kind = types.Trinket
	}
	return d, nil
}

// Reset drops all application tables to clear the database state.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `DROP TABLE IF EXISTS item_descriptions CASCADE;`)
	return err
}
