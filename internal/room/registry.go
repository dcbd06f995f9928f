package room

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"codeshare/internal/models"

	"github.com/c-pro/geche"
)

// SeedFunc looks up a stored snapshot for a room that is about to be created.
type SeedFunc func(ctx context.Context, roomID string) (*models.Snapshot, error)

type Options struct {
	MaxHistory int
	MaxChat    int
	Broadcast  BroadcastFunc
	Seed       SeedFunc
	Now        func() time.Time
}

// Limits are admission ceilings applied on join. Zero means unlimited.
type Limits struct {
	MaxRooms        int
	MaxUsersPerRoom int
}

// Registry owns every live room. A room exists exactly while it has at
// least one user: Join creates it and the Leave that removes the last
// user deletes it. Both run under the registry lock; every other room
// operation only takes the lock of its own room.
type Registry struct {
	rooms *geche.Locker[string, *Room]
	opts  Options
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		rooms: geche.NewLocker[string, *Room](geche.NewMapCache[string, *Room]()),
		opts:  opts,
	}
}

// GetOrCreate returns the room, creating it with a seeded main.js when
// absent. A room created here has no users until someone joins it; Join
// is the path sessions take.
func (g *Registry) GetOrCreate(roomID string) *Room {
	tx := g.rooms.Lock()
	defer tx.Unlock()
	return g.getOrCreate(tx, roomID, nil)
}

func (g *Registry) Get(roomID string) (*Room, bool) {
	tx := g.rooms.RLock()
	defer tx.Unlock()

	r, err := tx.Get(roomID)
	if err != nil {
		return nil, false
	}
	return r, true
}

// Remove deletes the entry. Leave calls it when the last user is gone.
func (g *Registry) Remove(roomID string) {
	tx := g.rooms.Lock()
	defer tx.Unlock()
	g.remove(tx, roomID)
}

func (g *Registry) Len() int {
	tx := g.rooms.RLock()
	defer tx.Unlock()
	return tx.Len()
}

// Rooms returns the live rooms sorted by id.
func (g *Registry) Rooms() []*Room {
	tx := g.rooms.RLock()
	snapshot := tx.Snapshot()
	tx.Unlock()

	rooms := make([]*Room, 0, len(snapshot))
	for _, r := range snapshot {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

func (g *Registry) List() []models.RoomSummary {
	rooms := g.Rooms()
	summaries := make([]models.RoomSummary, len(rooms))
	for i, r := range rooms {
		summaries[i] = r.Summary()
	}
	return summaries
}

// Join attaches connID to the room, creating the room if needed, subject
// to limits. It fails with ErrServerFull or ErrRoomFull.
func (g *Registry) Join(ctx context.Context, roomID, connID, username string, limits Limits) (*Room, models.User, error) {
	var seed *models.Snapshot
	if _, exists := g.Get(roomID); !exists && g.opts.Seed != nil {
		// Loaded outside the lock; a racing join may create the room first.
		s, err := g.opts.Seed(ctx, roomID)
		if err != nil {
			slog.Warn("failed to load room seed", "room_id", roomID, "error", err)
		} else {
			seed = s
		}
	}

	tx := g.rooms.Lock()
	defer tx.Unlock()

	if r, err := tx.Get(roomID); err != nil {
		if limits.MaxRooms > 0 && tx.Len() >= limits.MaxRooms {
			return nil, models.User{}, models.ErrServerFull
		}
	} else if limits.MaxUsersPerRoom > 0 && r.UserCount() >= limits.MaxUsersPerRoom {
		return nil, models.User{}, models.ErrRoomFull
	}

	r := g.getOrCreate(tx, roomID, seed)

	return r, r.AddUser(connID, username), nil
}

// Leave detaches connID and deletes the room when it becomes empty.
// It reports whether the room was deleted.
func (g *Registry) Leave(roomID, connID string) bool {
	tx := g.rooms.Lock()
	defer tx.Unlock()

	r, err := tx.Get(roomID)
	if err != nil {
		return false
	}
	if _, remaining := r.RemoveUser(connID); remaining == 0 {
		g.remove(tx, roomID)
		return true
	}
	return false
}

func (g *Registry) getOrCreate(tx *geche.Tx[string, *Room], roomID string, seed *models.Snapshot) *Room {
	if r, err := tx.Get(roomID); err == nil {
		return r
	}
	r := g.newRoom(roomID, seed)
	tx.Set(roomID, r)
	return r
}

func (g *Registry) remove(tx *geche.Tx[string, *Room], roomID string) {
	_ = tx.Del(roomID)
}

func (g *Registry) newRoom(roomID string, seed *models.Snapshot) *Room {
	return New(Config{
		ID:         roomID,
		MaxHistory: g.opts.MaxHistory,
		MaxChat:    g.opts.MaxChat,
		Broadcast:  g.opts.Broadcast,
		Now:        g.opts.Now,
		Seed:       seed,
	})
}
