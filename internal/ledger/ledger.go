// Package ledger keeps an audit trail of bid submissions per chat. Amounts
// are never stored: a record only says that a sealed bid was attempted and
// how the transaction ended.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/sealbid/core/config"
)

// ErrNotFound is returned by Update for an unknown record id.
var ErrNotFound = errors.New("ledger: record not found")

// Status is the lifecycle position of a bid transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// Record is one bid attempt.
type Record struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	TxHash    string    `json:"tx_hash,omitempty" db:"tx_hash"`
	Block     uint64    `json:"block,omitempty" db:"block_number"`
	GasUsed   uint64    `json:"gas_used,omitempty" db:"gas_used"`
	Error     string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewRecord returns a pending record with a time-ordered id.
func NewRecord(chatID, userID int64) *Record {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	return &Record{
		ID:        id,
		ChatID:    chatID,
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Store persists records. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	// ListByChat returns the newest records first.
	ListByChat(ctx context.Context, chatID int64, limit int) ([]Record, error)
	Close() error
}

// Open builds the store selected by cfg.Driver. db is required for the
// postgres driver and ignored otherwise.
func Open(cfg coreconfig.LedgerConfig, db *sqlx.DB) (Store, error) {
	switch cfg.Driver {
	case "", coreconfig.LedgerMemory:
		return NewMemoryStore(), nil
	case coreconfig.LedgerBolt:
		return OpenBolt(cfg.BoltPath)
	case coreconfig.LedgerPostgres:
		if db == nil {
			return nil, errors.New("ledger: postgres driver needs a database connection")
		}
		return NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}
