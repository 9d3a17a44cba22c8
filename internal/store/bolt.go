package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var catalogBucket = []byte("catalog")

// BoltBackend stores catalog units in a single bbolt bucket.
type BoltBackend struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(catalogBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(catalogBucket).Get([]byte(key)); v != nil {
			// bbolt values are only valid for the life of the transaction.
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, value != nil, nil
}

func (b *BoltBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	var keys []string
	p := []byte(prefix)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(catalogBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	return keys, nil
}

func (b *BoltBackend) Write(ctx context.Context, puts map[string][]byte, deletes []string) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(catalogBucket)
		for key, value := range puts {
			if err := bucket.Put([]byte(key), value); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
		}
		for _, key := range deletes {
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}
