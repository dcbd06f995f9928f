// Package snapshot persists room snapshots keyed by room id.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"codeshare/internal/config"
	"codeshare/internal/content"
	"codeshare/internal/models"
)

// Store is a durable location for room snapshots. Save replaces any
// previous snapshot of the same room. Load wraps models.ErrNotFound when
// the room was never saved.
type Store interface {
	Save(ctx context.Context, snap models.Snapshot) error
	Load(ctx context.Context, roomID string) (*models.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns the store selected by the configured backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.SaveBackend {
	case config.BackendJSON:
		s, err = NewJSONStore(cfg.SaveDir)
	case config.BackendBbolt:
		s, err = NewBboltStore(cfg.SaveDB)
	case config.BackendSQLite:
		s, err = NewSQLiteStore(cfg.SaveDB)
	case config.BackendRedis:
		s, err = NewRedisStore(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SaveBackend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Seed adapts a store for room restoration: a missing snapshot is not an error.
func Seed(s Store) func(ctx context.Context, roomID string) (*models.Snapshot, error) {
	return func(ctx context.Context, roomID string) (*models.Snapshot, error) {
		snap, err := s.Load(ctx, roomID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return snap, err
	}
}

func checkKey(roomID string) error {
	if err := content.ValidateRoomID(roomID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	return nil
}
