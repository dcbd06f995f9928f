package room

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"codeshare/internal/content"
	"codeshare/internal/models"
	"codeshare/internal/ot"
)

var languages = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".rb":   "ruby",
	".php":  "php",
	".md":   "markdown",
	".json": "json",
	".html": "html",
	".css":  "css",
	".yaml": "yaml",
	".yml":  "yaml",
	".sh":   "shell",
	".sql":  "sql",
}

// LanguageFor guesses the language tag from the file extension.
func LanguageFor(fileName string) string {
	if lang, ok := languages[strings.ToLower(path.Ext(fileName))]; ok {
		return lang
	}
	return "plaintext"
}

// UpdateCode replaces the content of fileName, or of the active file when
// fileName is empty, and appends a history entry. Edits to a file that
// does not exist are dropped and reported as false.
//
// The stored content is always exactly the last applied content. When op
// is given it is reconciled against the recent operations on the same
// file before it is recorded and sent to the other users.
func (r *Room) UpdateCode(connID, fileName, text string, op *models.Operation) (models.HistoryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fileName == "" {
		fileName = r.activeFile
	}
	f, ok := r.files[fileName]
	if !ok {
		return models.HistoryEntry{}, false
	}

	now := r.now().UnixMilli()
	f.Content = text

	entry := models.HistoryEntry{
		Timestamp: now,
		FileName:  fileName,
		Content:   text,
	}
	if m, ok := r.users[connID]; ok {
		entry.UserID = connID
		entry.Username = m.user.Username
	}
	if op != nil {
		incoming := *op
		if incoming.Timestamp <= 0 {
			incoming.Timestamp = now
		}
		adjusted := ot.Reconcile(incoming, r.recentOpsLocked(fileName))
		entry.Operation = &adjusted
	}
	r.history.Append(entry)

	r.sendOthers(connID, models.ServerMessage{
		Type: models.ServerMessageTypeCodeUpdate,
		Data: models.CodeUpdate{
			FileName:  fileName,
			Content:   text,
			Operation: entry.Operation,
			UserID:    entry.UserID,
			Username:  entry.Username,
			Timestamp: now,
		},
	})

	return entry, true
}

// recentOpsLocked returns the operations recorded on fileName among the
// last ot.DefaultWindow history entries, oldest first.
func (r *Room) recentOpsLocked(fileName string) []models.Operation {
	var ops []models.Operation
	for _, e := range r.history.Last(ot.DefaultWindow) {
		if e.FileName == fileName && e.Operation != nil {
			ops = append(ops, *e.Operation)
		}
	}
	return ops
}

// SwitchFile makes fileName the active file and sends active-file-changed
// to everyone. A missing file leaves the room untouched.
func (r *Room) SwitchFile(connID, fileName string) (models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[fileName]
	if !ok {
		return models.File{}, fmt.Errorf("file %s: %w", fileName, models.ErrNotFound)
	}
	r.activeFile = fileName

	r.sendAll(models.ServerMessage{
		Type: models.ServerMessageTypeActiveFileChanged,
		Data: models.ActiveFileChanged{File: *f, UserID: connID},
	})

	return *f, nil
}

// CreateFile adds a new file and sends file-created to everyone. An empty
// language is inferred from the extension.
func (r *Room) CreateFile(connID, fileName, text, language string) (models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[fileName]; ok {
		return models.File{}, fmt.Errorf("file %s: %w", fileName, models.ErrExists)
	}
	if language == "" {
		language = LanguageFor(fileName)
	}

	f := &models.File{Name: fileName, Content: text, Language: language}
	r.files[fileName] = f

	r.sendAll(models.ServerMessage{
		Type: models.ServerMessageTypeFileCreated,
		Data: models.FileCreated{File: *f, CreatedBy: connID},
	})

	return *f, nil
}

// DeleteFile removes a file. main.js is protected. Deleting the active
// file makes main.js active again. Everyone receives file-deleted with
// the resulting active file.
func (r *Room) DeleteFile(connID, fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fileName == models.MainFile {
		return fmt.Errorf("file %s: %w", fileName, models.ErrProtected)
	}
	if _, ok := r.files[fileName]; !ok {
		return fmt.Errorf("file %s: %w", fileName, models.ErrNotFound)
	}

	delete(r.files, fileName)
	if r.activeFile == fileName {
		r.activeFile = models.MainFile
	}

	r.sendAll(models.ServerMessage{
		Type: models.ServerMessageTypeFileDeleted,
		Data: models.FileDeleted{FileName: fileName, ActiveFile: r.activeFile, DeletedBy: connID},
	})

	return nil
}

func (r *Room) File(fileName string) (models.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[fileName]
	if !ok {
		return models.File{}, false
	}
	return *f, true
}

// Files returns all files sorted by name.
func (r *Room) Files() []models.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filesLocked()
}

func (r *Room) ActiveFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeFile
}

// AddChat appends a chat message from a connected user and sends it to the
// whole room, sender included. Text that is empty after trimming is dropped.
func (r *Room) AddChat(connID, text string) (models.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.users[connID]
	if !ok {
		return models.ChatMessage{}, false
	}
	text = content.ChatText(text)
	if text == "" {
		return models.ChatMessage{}, false
	}

	now := r.now().UnixMilli()
	msg := models.ChatMessage{
		ID:        fmt.Sprintf("%d%s", now, connID),
		UserID:    connID,
		Username:  m.user.Username,
		Color:     m.user.Color,
		Message:   text,
		Timestamp: now,
	}
	r.chat.Append(msg)

	r.sendAll(models.ServerMessage{
		Type: models.ServerMessageTypeChatMessage,
		Data: msg,
	})

	return msg, true
}

func (r *Room) Chat(count int) []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chat.Last(count)
}

// Replay returns the retained history entries with from <= timestamp <= to,
// in arrival order. A nil from means 0 and a nil to means now.
func (r *Room) Replay(from, to *int64) models.Replay {
	r.mu.Lock()
	defer r.mu.Unlock()

	lo, hi := int64(0), r.now().UnixMilli()
	if from != nil {
		lo = *from
	}
	if to != nil {
		hi = *to
	}

	entries := []models.HistoryEntry{}
	if lo <= hi {
		entries = r.history.Filter(func(e models.HistoryEntry) bool {
			return e.Timestamp >= lo && e.Timestamp <= hi
		})
	}

	return models.Replay{From: lo, To: hi, Entries: entries}
}

func (r *Room) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Len()
}

func (r *Room) filesLocked() []models.File {
	files := make([]models.File, 0, len(r.files))
	for _, f := range r.files {
		files = append(files, *f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}
