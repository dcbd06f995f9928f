package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"codeshare/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "codeshare:snapshot:"

// RedisStore keeps msgpack-encoded snapshots as plain keys without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: redisPrefix}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := checkKey(snap.ID); err != nil {
		return err
	}

	dbSnap := toDB(snap)
	data, err := dbSnap.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+string(dbSnap.Key()), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, roomID string) (*models.Snapshot, error) {
	data, err := s.client.Get(ctx, s.prefix+roomID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("snapshot %s: %w", roomID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var dbSnap DBSnapshot
	if err := dbSnap.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return dbSnap.model(), nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan error: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, s.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	slices.Sort(ids)
	return ids, nil
}
