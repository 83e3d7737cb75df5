package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
)

var resultsBucket = []byte("results")

// BoltStore keeps results in a local bolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the bolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating result store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt result store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating results bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) (ranker.RankedResult, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(resultsBucket).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return ranker.RankedResult{}, false, err
	}
	v, err := decodeResult(data)
	if err != nil {
		return ranker.RankedResult{}, false, err
	}
	return v, true, nil
}

func (s *BoltStore) Put(_ context.Context, key string, v ranker.RankedResult) error {
	data, err := encodeResult(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).Delete([]byte(key))
	})
}

func (s *BoltStore) Purge(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(resultsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(resultsBucket)
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// put stores raw bytes; tests use it to plant damaged entries.
func (s *BoltStore) put(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).Put([]byte(key), data)
	})
}
