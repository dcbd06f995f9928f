package snapshot

import (
	"context"
	"fmt"
	"time"

	"codeshare/internal/models"

	"go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// BboltStore keeps msgpack-encoded snapshots in a single bbolt bucket.
type BboltStore struct {
	db *bbolt.DB
}

func NewBboltStore(path string) (*BboltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStore{db: db}, nil
}

func (s *BboltStore) Close() error {
	return s.db.Close()
}

func (s *BboltStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(snap.ID); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		dbSnap := toDB(snap)
		data, err := dbSnap.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		return b.Put(dbSnap.Key(), data)
	})
}

func (s *BboltStore) Load(ctx context.Context, roomID string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var dbSnap DBSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(roomID))
		if data == nil {
			return fmt.Errorf("snapshot %s: %w", roomID, models.ErrNotFound)
		}
		return dbSnap.UnmarshalBinary(data)
	})
	if err != nil {
		return nil, err
	}
	return dbSnap.model(), nil
}

func (s *BboltStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Keys iterate in byte order.
		return tx.Bucket(bucketSnapshots).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
