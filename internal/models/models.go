package models

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrExists     = errors.New("already exists")
	ErrProtected  = errors.New("protected")
	ErrRoomFull   = errors.New("room is full")
	ErrServerFull = errors.New("server is full")
	ErrInvalid    = errors.New("invalid")
)

// MainFile is seeded into every room and can never be deleted.
const MainFile = "main.js"

// User is a connection attached to a room.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Color    string  `json:"color"`
	JoinedAt int64   `json:"joinedAt"` // Unix milliseconds
	Cursor   *Cursor `json:"cursor,omitempty"`
}

// File is a named text buffer. The name is its key within a room.
type File struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Cursor is the last reported caret position of a connection.
type Cursor struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	FileName  string `json:"fileName,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	UpdatedAt int64  `json:"updatedAt"`
}

type ChatMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type OperationType string

const (
	OperationInsert  OperationType = "insert"
	OperationDelete  OperationType = "delete"
	OperationReplace OperationType = "replace"
)

// Operation describes the edit that produced a code change.
// Position is a character offset into the document.
type Operation struct {
	Type      OperationType `json:"type"`
	Position  int           `json:"position"`
	Length    int           `json:"length,omitempty"`
	Text      string        `json:"text,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

// HistoryEntry stores the full post-edit content of a file, not a diff.
type HistoryEntry struct {
	Timestamp int64      `json:"timestamp"`
	FileName  string     `json:"fileName"`
	Content   string     `json:"content"`
	UserID    string     `json:"userId,omitempty"`
	Username  string     `json:"username,omitempty"`
	Operation *Operation `json:"operation,omitempty"`
}

// RoomState is the full view sent to a joining client.
type RoomState struct {
	RoomID     string        `json:"roomId"`
	ActiveFile string        `json:"activeFile"`
	Files      []File        `json:"files"`
	Users      []User        `json:"users"`
	Cursors    []Cursor      `json:"cursors"`
	Chat       []ChatMessage `json:"chat"`
}

// RoomSummary is the listing row for a room.
type RoomSummary struct {
	ID           string `json:"id"`
	Users        int    `json:"users"`
	Files        int    `json:"files"`
	LastActivity int64  `json:"lastActivity"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Snapshot is the durable form of a room.
type Snapshot struct {
	ID         string          `json:"id"`
	Files      map[string]File `json:"files"`
	ActiveFile string          `json:"activeFile"`
	LastSaved  int64           `json:"lastSaved"` // Unix milliseconds
	UserCount  int             `json:"userCount"`
}
