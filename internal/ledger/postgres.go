package ledger

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Migrations holds the schema for the postgres store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// PostgresStore keeps records in the bids table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertBid = `
INSERT INTO bids (id, chat_id, user_id, status, tx_hash, block_number, gas_used, error, created_at, updated_at)
VALUES (:id, :chat_id, :user_id, :status, :tx_hash, :block_number, :gas_used, :error, :created_at, :updated_at)`

const updateBid = `
UPDATE bids
SET status = :status, tx_hash = :tx_hash, block_number = :block_number,
    gas_used = :gas_used, error = :error, updated_at = :updated_at
WHERE id = :id`

const selectByChat = `
SELECT id, chat_id, user_id, status, tx_hash, block_number, gas_used, error, created_at, updated_at
FROM bids
WHERE chat_id = $1
ORDER BY created_at DESC
LIMIT $2`

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	if _, err := s.db.NamedExecContext(ctx, insertBid, rec); err != nil {
		return fmt.Errorf("ledger: insert bid: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx, updateBid, rec)
	if err != nil {
		return fmt.Errorf("ledger: update bid: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByChat(ctx context.Context, chatID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Record
	if err := s.db.SelectContext(ctx, &out, selectByChat, chatID, limit); err != nil {
		return nil, fmt.Errorf("ledger: list bids: %w", err)
	}
	return out, nil
}

// Close is a no-op: the connection pool belongs to bootstrap.
func (s *PostgresStore) Close() error { return nil }
