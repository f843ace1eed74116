// Package store keeps the delivery ledger: which headline ids were already
// handed to the publishers, so a headline is published at most once.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var publishedBucket = []byte("published")

// Ledger is a bbolt-backed set of published headline ids with their publish time.
type Ledger struct {
	db *bolt.DB
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(publishedBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Unseen filters ids down to those not yet published, keeping order.
func (l *Ledger) Unseen(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(publishedBucket)
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				out = append(out, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	return out, nil
}

// MarkPublished records ids as published at the given time.
func (l *Ledger) MarkPublished(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	stamp := encodeTime(at)
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(publishedBucket)
		for _, id := range ids {
			if err := b.Put([]byte(id), stamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

// Prune drops entries published before cutoff and reports how many were removed.
func (l *Ledger) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(publishedBucket)

		// cursor deletes mid-iteration can skip keys, so collect first
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if decodeTime(v).Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ledger prune: %w", err)
	}
	return removed, nil
}

// Close releases the database file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(b []byte) time.Time {
	if len(b) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)))
}
