package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/m3rciful/sealbid/core/logger"
)

const bucketBids = "bids"

// BoltStore keeps records in a single bolt file. Keys are time-ordered
// UUIDs so a reverse cursor walk yields newest records first.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBids))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create bucket: %w", err)
	}
	logger.Ledger.Info("ledger opened",
		slog.String("event", "ledger.open"),
		slog.String("driver", "bolt"),
		slog.String("path", path),
	)
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Create(_ context.Context, rec *Record) error {
	return s.put(rec, false)
}

func (s *BoltStore) Update(_ context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	return s.put(rec, true)
}

func (s *BoltStore) put(rec *Record, mustExist bool) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key, err := rec.ID.MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBids))
		if mustExist && b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Put(key, val)
	})
}

func (s *BoltStore) ListByChat(_ context.Context, chatID int64, limit int) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketBids)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %x: %w", k, err)
			}
			if rec.ChatID != chatID {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Close() error { return s.db.Close() }
