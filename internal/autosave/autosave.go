// Package autosave periodically persists rooms that have not been saved recently.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/room"
)

const (
	DefaultInterval   = 30 * time.Second
	DefaultStaleAfter = 60 * time.Second
)

type RoomSource interface {
	Rooms() []*room.Room
}

type Saver interface {
	Save(ctx context.Context, snap models.Snapshot) error
}

type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Now        func() time.Time
}

type Scheduler struct {
	rooms  RoomSource
	store  Saver
	config Config
}

func New(rooms RoomSource, store Saver, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultStaleAfter
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Scheduler{rooms: rooms, store: store, config: config}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	slog.Info("autosave started", "interval", s.config.Interval, "stale_after", s.config.StaleAfter)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep saves every room whose last save is older than StaleAfter and
// returns how many were written. A failed room is logged and retried on
// the next sweep; it does not stop the others.
func (s *Scheduler) Sweep(ctx context.Context) int {
	now := s.config.Now()
	saved := 0
	for _, r := range s.rooms.Rooms() {
		if now.Sub(r.LastSaved()) <= s.config.StaleAfter {
			continue
		}
		if err := s.save(ctx, r); err != nil {
			slog.Error("autosave failed", "room_id", r.ID, "error", err)
			continue
		}
		saved++
	}
	if saved > 0 {
		slog.Info("autosave sweep", "saved", saved)
	}
	return saved
}

// SaveAll writes every live room regardless of staleness. It is used for
// the shutdown drain and the admin save endpoint.
func (s *Scheduler) SaveAll(ctx context.Context) (int, error) {
	var errs []error
	saved := 0
	for _, r := range s.rooms.Rooms() {
		if err := s.save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", r.ID, err))
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func (s *Scheduler) save(ctx context.Context, r *room.Room) error {
	snap := r.Snapshot()
	if err := s.store.Save(ctx, snap); err != nil {
		return err
	}
	r.MarkSaved(time.UnixMilli(snap.LastSaved))
	return nil
}
