package room

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeshare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	to  string
	msg models.ServerMessage
}

type recorder struct {
	mu  sync.Mutex
	got []delivery
}

func (rec *recorder) broadcast(receiverID string, msg models.ServerMessage) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.got = append(rec.got, delivery{to: receiverID, msg: msg})
}

func (rec *recorder) take() []delivery {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := rec.got
	rec.got = nil
	return out
}

func receivers(ds []delivery, typ models.ServerMessageType) []string {
	var ids []string
	for _, d := range ds {
		if d.msg.Type == typ {
			ids = append(ids, d.to)
		}
	}
	return ids
}

// clock returns a Now func that advances one millisecond per call.
func clock(start int64) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t++
		return time.UnixMilli(t)
	}
}

func newTestRoom(t *testing.T, maxHistory, maxChat int) (*Room, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := New(Config{
		ID:         "ABC123",
		MaxHistory: maxHistory,
		MaxChat:    maxChat,
		Broadcast:  rec.broadcast,
		Now:        clock(1_000),
	})
	return r, rec
}

func TestNew_SeedsMainFile(t *testing.T) {
	r, _ := newTestRoom(t, 10, 10)

	f, ok := r.File(models.MainFile)
	require.True(t, ok)
	assert.Equal(t, "javascript", f.Language)
	assert.NotEmpty(t, f.Content)
	assert.Equal(t, models.MainFile, r.ActiveFile())
}

func TestNew_FromSeedSnapshot(t *testing.T) {
	seed := &models.Snapshot{
		ID: "ABC123",
		Files: map[string]models.File{
			"app.py": {Content: "print(1)", Language: "python"},
		},
		ActiveFile: "app.py",
	}
	r := New(Config{ID: "ABC123", Seed: seed})

	f, ok := r.File("app.py")
	require.True(t, ok)
	assert.Equal(t, "app.py", f.Name)
	assert.Equal(t, "app.py", r.ActiveFile())
	_, ok = r.File(models.MainFile)
	assert.True(t, ok, "main.js must be present even when the seed lacks it")

	bad := New(Config{ID: "X", Seed: &models.Snapshot{ActiveFile: "gone.js"}})
	assert.Equal(t, models.MainFile, bad.ActiveFile())
}

func TestAddUser_ColorsAndDefaultNames(t *testing.T) {
	r, rec := newTestRoom(t, 10, 10)

	alice := r.AddUser("c1", "Alice")
	bob := r.AddUser("c2", "Bob")
	anon := r.AddUser("c3", "")

	assert.Equal(t, Palette[0], alice.Color)
	assert.Equal(t, Palette[1], bob.Color)
	assert.Equal(t, Palette[2], anon.Color)
	assert.Equal(t, "User3", anon.Username)

	ds := rec.take()
	// c1 joined alone; c2 notifies c1; c3 notifies c1 and c2.
	assert.ElementsMatch(t, []string{"c1", "c1", "c2"}, receivers(ds, models.ServerMessageTypeUserJoined))

	users := r.Users()
	require.Len(t, users, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{users[0].ID, users[1].ID, users[2].ID})
}

func TestAddUser_ColorWrapsAndIsNotReassigned(t *testing.T) {
	r, _ := newTestRoom(t, 10, 10)

	for i := range len(Palette) {
		r.AddUser(fmt.Sprintf("c%d", i), "")
	}
	wrapped := r.AddUser("extra", "")
	assert.Equal(t, Palette[0], wrapped.Color)

	// Colors follow the count at join time; leaving does not recolor anyone.
	r.RemoveUser("c0")
	u, ok := r.User("c1")
	require.True(t, ok)
	assert.Equal(t, Palette[1], u.Color)

	next := r.AddUser("late", "")
	assert.Equal(t, Palette[len(Palette)%len(Palette)], next.Color)
	assert.Equal(t, fmt.Sprintf("User%d", len(Palette)+1), next.Username)
}

func TestRemoveUser(t *testing.T) {
	r, rec := newTestRoom(t, 10, 10)
	r.AddUser("c1", "Alice")
	r.AddUser("c2", "Bob")
	r.UpdateCursor("c1", models.CursorChange{Line: 1, Column: 2})
	rec.take()

	removed, remaining := r.RemoveUser("c1")
	assert.True(t, removed)
	assert.Equal(t, 1, remaining)
	assert.Empty(t, r.Cursors())
	assert.Equal(t, []string{"c2"}, receivers(rec.take(), models.ServerMessageTypeUserLeft))

	removed, remaining = r.RemoveUser("c1")
	assert.False(t, removed, "second removal is a no-op")
	assert.Equal(t, 1, remaining)
	assert.Empty(t, rec.take())
}

func TestUpdateCursor(t *testing.T) {
	r, rec := newTestRoom(t, 10, 10)
	r.AddUser("c1", "Alice")
	r.AddUser("c2", "Bob")
	rec.take()

	c, ok := r.UpdateCursor("c1", models.CursorChange{Line: 3, Column: 9, FileName: "main.js"})
	require.True(t, ok)
	assert.Equal(t, "Alice", c.Username)
	assert.Equal(t, Palette[0], c.Color)
	assert.Equal(t, 3, c.Line)
	assert.Equal(t, 9, c.Column)
	assert.NotZero(t, c.UpdatedAt)
	assert.Equal(t, []string{"c2"}, receivers(rec.take(), models.ServerMessageTypeCursorUpdate))

	// upsert
	_, ok = r.UpdateCursor("c1", models.CursorChange{Line: 4})
	require.True(t, ok)
	cursors := r.Cursors()
	require.Len(t, cursors, 1)
	assert.Equal(t, 4, cursors[0].Line)

	u, _ := r.User("c1")
	require.NotNil(t, u.Cursor)
	assert.Equal(t, 4, u.Cursor.Line)

	_, ok = r.UpdateCursor("ghost", models.CursorChange{Line: 1})
	assert.False(t, ok)
}

func TestState(t *testing.T) {
	r, _ := newTestRoom(t, 10, 100)
	r.AddUser("c1", "Alice")
	for i := range 60 {
		r.AddChat("c1", fmt.Sprintf("msg %d", i))
	}
	_, err := r.CreateFile("c1", "b.js", "", "")
	require.NoError(t, err)

	s := r.State()
	assert.Equal(t, "ABC123", s.RoomID)
	assert.Equal(t, models.MainFile, s.ActiveFile)
	require.Len(t, s.Files, 2)
	assert.Equal(t, "b.js", s.Files[0].Name)
	assert.Len(t, s.Users, 1)
	require.Len(t, s.Chat, StateChatLimit)
	assert.Equal(t, "msg 10", s.Chat[0].Message)
	assert.Equal(t, "msg 59", s.Chat[StateChatLimit-1].Message)
}

func TestSummaryAndSnapshot(t *testing.T) {
	r, _ := newTestRoom(t, 10, 10)
	assert.Equal(t, int64(0), r.Summary().LastActivity)

	r.AddUser("c1", "Alice")
	entry, ok := r.UpdateCode("c1", "", "x = 1", nil)
	require.True(t, ok)

	sum := r.Summary()
	assert.Equal(t, models.RoomSummary{ID: "ABC123", Users: 1, Files: 1, LastActivity: entry.Timestamp}, sum)

	snap := r.Snapshot()
	assert.Equal(t, "ABC123", snap.ID)
	assert.Equal(t, 1, snap.UserCount)
	assert.Equal(t, models.MainFile, snap.ActiveFile)
	assert.Equal(t, "x = 1", snap.Files[models.MainFile].Content)
	assert.NotZero(t, snap.LastSaved)

	at := time.UnixMilli(42)
	r.MarkSaved(at)
	assert.Equal(t, at, r.LastSaved())
}

func TestConcurrentMutations(t *testing.T) {
	r, _ := newTestRoom(t, 5000, 5000)

	var wg sync.WaitGroup
	for i := range 20 {
		id := fmt.Sprintf("c%d", i)
		wg.Go(func() {
			r.AddUser(id, "")
			for j := range 50 {
				r.UpdateCode(id, "", fmt.Sprintf("%s-%d", id, j), &models.Operation{Type: models.OperationInsert, Position: j})
				r.UpdateCursor(id, models.CursorChange{Line: j})
				r.AddChat(id, "hi")
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 20, r.UserCount())
	assert.Equal(t, 1000, r.HistoryLen())
	assert.Len(t, r.Chat(5000), 1000)

	// The stored content is the content of the last applied edit.
	last := r.Replay(nil, nil).Entries
	require.NotEmpty(t, last)
	f, _ := r.File(models.MainFile)
	assert.Equal(t, last[len(last)-1].Content, f.Content)
}

func TestErrorsWrapSentinels(t *testing.T) {
	r, _ := newTestRoom(t, 10, 10)
	_, err := r.SwitchFile("c1", "nope.js")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
