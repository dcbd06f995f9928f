package room

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/ringlog"
)

// Palette colors are handed out by join order.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
}

const (
	DefaultMaxHistory = 1000
	DefaultMaxChat    = 500

	// StateChatLimit is how many chat messages a joining client receives.
	StateChatLimit = 50

	welcomeContent = "// Welcome to the shared editor\n// Start coding together!\n"
)

// BroadcastFunc delivers a message to one connection. It is called while
// the room is locked and must not block or call back into the room.
type BroadcastFunc func(receiverID string, msg models.ServerMessage)

type Config struct {
	ID         string
	MaxHistory int
	MaxChat    int
	Broadcast  BroadcastFunc
	Now        func() time.Time
	// Seed, when set, replaces the default main.js with stored files.
	Seed *models.Snapshot
}

type member struct {
	user models.User
	seq  uint64
}

// Room is one shared editing context. All state is guarded by mu, so
// operations on a room are serialized in arrival order while different
// rooms proceed in parallel.
type Room struct {
	ID string

	users      map[string]*member
	cursors    map[string]models.Cursor
	files      map[string]*models.File
	activeFile string
	chat       *ringlog.Ring[models.ChatMessage]
	history    *ringlog.Ring[models.HistoryEntry]
	lastSaved  time.Time
	joinSeq    uint64

	broadcast BroadcastFunc
	now       func() time.Time

	mu sync.Mutex
}

func New(config Config) *Room {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultMaxHistory
	}
	if config.MaxChat <= 0 {
		config.MaxChat = DefaultMaxChat
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	r := &Room{
		ID:         config.ID,
		users:      make(map[string]*member),
		cursors:    make(map[string]models.Cursor),
		files:      make(map[string]*models.File),
		activeFile: models.MainFile,
		chat:       ringlog.New[models.ChatMessage](config.MaxChat),
		history:    ringlog.New[models.HistoryEntry](config.MaxHistory),
		broadcast:  config.Broadcast,
		now:        config.Now,
	}
	r.lastSaved = r.now()

	if seed := config.Seed; seed != nil {
		for name, f := range seed.Files {
			f.Name = name
			r.files[name] = &f
		}
		if _, ok := r.files[seed.ActiveFile]; ok {
			r.activeFile = seed.ActiveFile
		}
	}
	if _, ok := r.files[models.MainFile]; !ok {
		r.files[models.MainFile] = &models.File{
			Name:     models.MainFile,
			Content:  welcomeContent,
			Language: "javascript",
		}
	}
	if _, ok := r.files[r.activeFile]; !ok {
		r.activeFile = models.MainFile
	}

	return r
}

// AddUser attaches a connection. An empty name becomes User<N> where N is
// the 1-based position at join time; the color is picked the same way.
// Everyone else in the room receives user-joined.
func (r *Room) AddUser(connID, requestedName string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.users)
	name := requestedName
	if name == "" {
		name = fmt.Sprintf("User%d", count+1)
	}

	r.joinSeq++
	m := &member{
		user: models.User{
			ID:       connID,
			Username: name,
			Color:    Palette[count%len(Palette)],
			JoinedAt: r.now().UnixMilli(),
		},
		seq: r.joinSeq,
	}
	r.users[connID] = m

	r.sendOthers(connID, models.ServerMessage{
		Type: models.ServerMessageTypeUserJoined,
		Data: models.UserJoined{User: m.user, Users: r.usersLocked()},
	})

	return m.user
}

// RemoveUser detaches a connection and drops its cursor. It reports
// whether the user was present and how many users remain. Removing an
// unknown connection is a no-op.
func (r *Room) RemoveUser(connID string) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.users[connID]
	if !ok {
		return false, len(r.users)
	}
	delete(r.users, connID)
	delete(r.cursors, connID)

	r.sendAll(models.ServerMessage{
		Type: models.ServerMessageTypeUserLeft,
		Data: models.UserLeft{UserID: connID, Username: m.user.Username, Users: r.usersLocked()},
	})

	return true, len(r.users)
}

func (r *Room) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Room) User(connID string) (models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.users[connID]
	if !ok {
		return models.User{}, false
	}
	return r.withCursor(m.user), true
}

func (r *Room) Users() []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usersLocked()
}

// UpdateCursor records the caret of a connected user and sends
// cursor-update to the others. Unknown connections are ignored.
func (r *Room) UpdateCursor(connID string, pos models.CursorChange) (models.Cursor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.users[connID]
	if !ok {
		return models.Cursor{}, false
	}

	c := models.Cursor{
		UserID:    connID,
		Username:  m.user.Username,
		Color:     m.user.Color,
		FileName:  pos.FileName,
		Line:      pos.Line,
		Column:    pos.Column,
		UpdatedAt: r.now().UnixMilli(),
	}
	r.cursors[connID] = c

	r.sendOthers(connID, models.ServerMessage{
		Type: models.ServerMessageTypeCursorUpdate,
		Data: c,
	})

	return c, true
}

func (r *Room) Cursors() []models.Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursorsLocked()
}

// State is the full view sent to a client right after it joins.
func (r *Room) State() models.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return models.RoomState{
		RoomID:     r.ID,
		ActiveFile: r.activeFile,
		Files:      r.filesLocked(),
		Users:      r.usersLocked(),
		Cursors:    r.cursorsLocked(),
		Chat:       r.chat.Last(StateChatLimit),
	}
}

func (r *Room) Summary() models.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return models.RoomSummary{
		ID:           r.ID,
		Users:        len(r.users),
		Files:        len(r.files),
		LastActivity: r.lastActivityLocked(),
	}
}

// Snapshot copies the durable part of the room, stamped with the time of the call.
func (r *Room) Snapshot() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := make(map[string]models.File, len(r.files))
	for name, f := range r.files {
		files[name] = *f
	}
	return models.Snapshot{
		ID:         r.ID,
		Files:      files,
		ActiveFile: r.activeFile,
		LastSaved:  r.now().UnixMilli(),
		UserCount:  len(r.users),
	}
}

func (r *Room) LastSaved() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSaved
}

func (r *Room) MarkSaved(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSaved = at
}

func (r *Room) usersLocked() []models.User {
	members := make([]*member, 0, len(r.users))
	for _, m := range r.users {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })

	users := make([]models.User, len(members))
	for i, m := range members {
		users[i] = r.withCursor(m.user)
	}
	return users
}

func (r *Room) withCursor(u models.User) models.User {
	if c, ok := r.cursors[u.ID]; ok {
		u.Cursor = &c
	}
	return u
}

func (r *Room) cursorsLocked() []models.Cursor {
	cursors := make([]models.Cursor, 0, len(r.cursors))
	for _, c := range r.cursors {
		cursors = append(cursors, c)
	}
	sort.Slice(cursors, func(i, j int) bool {
		return r.users[cursors[i].UserID].seq < r.users[cursors[j].UserID].seq
	})
	return cursors
}

func (r *Room) lastActivityLocked() int64 {
	var last int64
	for _, e := range r.history.All() {
		last = max(last, e.Timestamp)
	}
	return last
}

func (r *Room) sendAll(msg models.ServerMessage) {
	r.sendOthers("", msg)
}

func (r *Room) sendOthers(exclude string, msg models.ServerMessage) {
	if r.broadcast == nil {
		return
	}
	for id := range r.users {
		if id != exclude {
			r.broadcast(id, msg)
		}
	}
}
