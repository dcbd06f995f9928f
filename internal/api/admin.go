package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the basic auth user name of the admin API.
const AdminUser = "admin"

type Saver interface {
	SaveAll(ctx context.Context) (int, error)
}

// SnapshotLister reports the room ids that have a stored snapshot.
type SnapshotLister interface {
	List(ctx context.Context) ([]string, error)
}

type AdminHandler struct {
	rooms     Rooms
	saver     Saver
	snapshots SnapshotLister
}

func NewAdminHandler(rooms Rooms, saver Saver, snapshots SnapshotLister) *AdminHandler {
	return &AdminHandler{rooms: rooms, saver: saver, snapshots: snapshots}
}

type SnapshotsResponse struct {
	Rooms []string `json:"rooms"`
}

type SaveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Saved   int    `json:"saved"`
}

// SaveHandler snapshots every live room now, stale or not.
func (h *AdminHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	saved, err := h.saver.SaveAll(r.Context())
	if err != nil {
		slog.Error("admin save failed", "saved", saved, "error", err)
		writeJSON(w, http.StatusInternalServerError, SaveResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to save some rooms: %v", err),
			Saved:   saved,
		})
		return
	}

	writeJSON(w, http.StatusOK, SaveResponse{
		Success: true,
		Message: fmt.Sprintf("Saved %d rooms", saved),
		Saved:   saved,
	})
}

func (h *AdminHandler) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rooms.List())
}

// SnapshotsHandler lists every stored snapshot, live or not.
func (h *AdminHandler) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := h.snapshots.List(r.Context())
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SnapshotsResponse{Rooms: ids})
}

// RequireBasicAuth checks the admin password against a bcrypt hash.
// An empty hash leaves the handler open; the admin API listens on
// localhost by default.
func RequireBasicAuth(passwordHash string, next http.HandlerFunc) http.HandlerFunc {
	if passwordHash == "" {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}
