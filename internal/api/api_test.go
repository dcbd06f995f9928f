package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeshare/internal/models"
	"codeshare/internal/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRegistry(t *testing.T, ids ...string) *room.Registry {
	t.Helper()
	reg := room.NewRegistry(room.Options{})
	for _, id := range ids {
		_, _, err := reg.Join(context.Background(), id, "c-"+id, "Alice", room.Limits{})
		require.NoError(t, err)
	}
	return reg
}

func newMux(reg *room.Registry) *http.ServeMux {
	a := New(reg)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.HealthHandler)
	mux.HandleFunc("GET /api/rooms", a.ListRoomsHandler)
	mux.HandleFunc("GET /api/rooms/{id}", a.GetRoomHandler)
	mux.HandleFunc("POST /api/rooms/{id}/files", a.CreateFileHandler)
	mux.HandleFunc("GET /api/rooms/{id}/preview/{name...}", a.PreviewHandler)
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := do(t, newMux(newRegistry(t, "a")), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Rooms)
}

func TestListRooms(t *testing.T) {
	rr := do(t, newMux(newRegistry(t, "b", "a")), http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var rooms []models.RoomSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms))
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, 1, rooms[0].Users)
	assert.Equal(t, 1, rooms[0].Files)
}

func TestGetRoom(t *testing.T) {
	mux := newMux(newRegistry(t, "ABC123"))

	rr := do(t, mux, http.MethodGet, "/api/rooms/ABC123", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var state models.RoomState
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	assert.Equal(t, "ABC123", state.RoomID)
	assert.Equal(t, models.MainFile, state.ActiveFile)
	require.Len(t, state.Users, 1)

	rr = do(t, mux, http.MethodGet, "/api/rooms/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateFile(t *testing.T) {
	reg := newRegistry(t, "r")
	mux := newMux(reg)

	rr := do(t, mux, http.MethodPost, "/api/rooms/r/files", `{"fileName":"utils.js","content":"export {}"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var f models.File
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&f))
	assert.Equal(t, "javascript", f.Language)

	tests := []struct {
		name string
		body string
	}{
		{"collision", `{"fileName":"utils.js"}`},
		{"main collision", `{"fileName":"main.js"}`},
		{"bad json", `{`},
		{"unsafe name", `{"fileName":"../../etc/passwd"}`},
		{"binary", `{"fileName":"doc.txt","content":"%PDF-1.7\n\u0000\u0001"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, http.MethodPost, "/api/rooms/r/files", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	r, _ := reg.Get("r")
	assert.Len(t, r.Files(), 2)

	rr = do(t, mux, http.MethodPost, "/api/rooms/missing/files", `{"fileName":"a.js"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPreview(t *testing.T) {
	reg := newRegistry(t, "r")
	r, _ := reg.Get("r")
	_, err := r.CreateFile("", "docs/readme.md", "# Title\n\n<script>alert(1)</script>", "")
	require.NoError(t, err)
	mux := newMux(reg)

	rr := do(t, mux, http.MethodGet, "/api/rooms/r/preview/docs/readme.md", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "<h1")
	assert.NotContains(t, rr.Body.String(), "<script>")

	rr = do(t, mux, http.MethodGet, "/api/rooms/r/preview/main.js", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodGet, "/api/rooms/r/preview/none.md", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type mockSaver struct {
	saved int
	err   error
}

func (m *mockSaver) SaveAll(context.Context) (int, error) {
	return m.saved, m.err
}

type mockLister struct {
	ids []string
	err error
}

func (m *mockLister) List(context.Context) ([]string, error) {
	return m.ids, m.err
}

func TestAdminSave(t *testing.T) {
	h := NewAdminHandler(newRegistry(t), &mockSaver{saved: 3}, &mockLister{})
	rr := do(t, http.HandlerFunc(h.SaveHandler), http.MethodPost, "/admin/save", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SaveResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Saved)

	h = NewAdminHandler(newRegistry(t), &mockSaver{saved: 1, err: errors.New("disk full")}, &mockLister{})
	rr = do(t, http.HandlerFunc(h.SaveHandler), http.MethodPost, "/admin/save", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestAdminRooms(t *testing.T) {
	h := NewAdminHandler(newRegistry(t, "x"), &mockSaver{}, &mockLister{})
	rr := do(t, http.HandlerFunc(h.RoomsHandler), http.MethodGet, "/admin/rooms", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var rooms []models.RoomSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "x", rooms[0].ID)
}

func TestAdminSnapshots(t *testing.T) {
	h := NewAdminHandler(newRegistry(t), &mockSaver{}, &mockLister{ids: []string{"a", "b"}})
	rr := do(t, http.HandlerFunc(h.SnapshotsHandler), http.MethodGet, "/admin/snapshots", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SnapshotsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, []string{"a", "b"}, resp.Rooms)

	h = NewAdminHandler(newRegistry(t), &mockSaver{}, &mockLister{})
	rr = do(t, http.HandlerFunc(h.SnapshotsHandler), http.MethodGet, "/admin/snapshots", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"rooms":[]}`, rr.Body.String())

	h = NewAdminHandler(newRegistry(t), &mockSaver{}, &mockLister{err: errors.New("disk gone")})
	rr = do(t, http.HandlerFunc(h.SnapshotsHandler), http.MethodGet, "/admin/snapshots", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRequireBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	h := RequireBasicAuth(string(hash), ok)

	tests := []struct {
		name     string
		user     string
		password string
		want     int
	}{
		{"valid", AdminUser, "secret", http.StatusNoContent},
		{"wrong password", AdminUser, "guess", http.StatusUnauthorized},
		{"wrong user", "root", "secret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/save", nil)
			req.SetBasicAuth(tt.user, tt.password)
			rr := httptest.NewRecorder()
			h(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	t.Run("missing", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/admin/save", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
	})

	t.Run("open without hash", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireBasicAuth("", ok)(rr, httptest.NewRequest(http.MethodPost, "/admin/save", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
