// Package buffer persists stamps that failed to reach the task store so they
// can be replayed once it is reachable again.
package buffer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "stamps"

var ErrEmptyTaskID = errors.New("buffer: item has no task id")

// Store is a bbolt file with one key per task id.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the bbolt file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// Put records item unless a stamp for the same task with a later
// SuggestedAt is already waiting.
func (s *Store) Put(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if item.TaskID == "" {
		return ErrEmptyTaskID
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := []byte(item.TaskID)
		if raw := b.Get(key); raw != nil {
			var existing Item
			if err := json.Unmarshal(raw, &existing); err == nil && existing.SuggestedAt.After(item.SuggestedAt) {
				return nil
			}
		}
		payload, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return b.Put(key, payload)
	})
}

// Batch returns up to limit items without removing them. Undecodable
// entries are deleted.
func (s *Store) Batch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}
	var items []Item
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var broken [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil || item.TaskID == "" {
				broken = append(broken, append([]byte(nil), k...))
				continue
			}
			items = append(items, item)
		}
		return deleteKeys(b, broken)
	})
	return items, err
}

// Remove deletes item, but only if it is still the stored stamp for its
// task. A newer stamp put meanwhile survives.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		raw := b.Get([]byte(item.TaskID))
		if raw == nil {
			return nil
		}
		var stored Item
		if err := json.Unmarshal(raw, &stored); err == nil && stored.ID != item.ID {
			return nil
		}
		return b.Delete([]byte(item.TaskID))
	})
}

// Size returns the number of buffered stamps.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Prune removes stamps enqueued before olderThan.
func (s *Store) Prune(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var expired [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		err := b.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err == nil && item.EnqueuedAt.Before(olderThan) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		return deleteKeys(b, expired)
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Keys are collected first; deleting under an open cursor skips entries.
func deleteKeys(b *bolt.Bucket, keys [][]byte) error {
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
