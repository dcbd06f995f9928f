package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"codeshare/internal/content"
	"codeshare/internal/models"
	"codeshare/internal/room"
)

// maxBodySize bounds REST request bodies.
const maxBodySize = 1 << 20

type Rooms interface {
	List() []models.RoomSummary
	Get(roomID string) (*room.Room, bool)
	Len() int
}

type API struct {
	rooms Rooms
	now   func() time.Time
}

func New(rooms Rooms) *API {
	return &API{rooms: rooms, now: time.Now}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Rooms     int    `json:"rooms"`
	Timestamp int64  `json:"timestamp"`
}

type CreateFileRequest struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Rooms:     a.rooms.Len(),
		Timestamp: a.now().UnixMilli(),
	})
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.rooms.List())
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	rm, ok := a.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rm.State())
}

// CreateFileHandler adds a file outside of any websocket session. Name
// collisions, unsafe names and binary content are all 400.
func (a *API) CreateFileHandler(w http.ResponseWriter, r *http.Request) {
	rm, ok := a.room(w, r)
	if !ok {
		return
	}

	var req CreateFileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := content.ValidateFileName(req.FileName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := content.CheckText(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := rm.CreateFile("", req.FileName, req.Content, req.Language)
	if err != nil {
		if errors.Is(err, models.ErrExists) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File %s already exists", req.FileName))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

// PreviewHandler renders a markdown file of a room as sanitized HTML.
func (a *API) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	rm, ok := a.room(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")
	f, ok := rm.File(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("File %s not found", name))
		return
	}
	if f.Language != "markdown" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("File %s is not markdown", name))
		return
	}

	html, err := content.RenderMarkdown(f.Content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		log.Printf("failed to write preview: %v", err)
	}
}

func (a *API) room(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	id := r.PathValue("id")
	rm, ok := a.rooms.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Room %s not found", id))
		return nil, false
	}
	return rm, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.APIResponse{Success: false, Message: message})
}
