package models

type ServerMessageType string

const (
	ServerMessageTypeRoomState         ServerMessageType = "room-state"
	ServerMessageTypeUserJoined        ServerMessageType = "user-joined"
	ServerMessageTypeUserLeft          ServerMessageType = "user-left"
	ServerMessageTypeCodeUpdate        ServerMessageType = "code-update"
	ServerMessageTypeCursorUpdate      ServerMessageType = "cursor-update"
	ServerMessageTypeActiveFileChanged ServerMessageType = "active-file-changed"
	ServerMessageTypeFileCreated       ServerMessageType = "file-created"
	ServerMessageTypeFileDeleted       ServerMessageType = "file-deleted"
	ServerMessageTypeChatMessage       ServerMessageType = "chat-message"
	ServerMessageTypeReplay            ServerMessageType = "replay"
	ServerMessageTypePong              ServerMessageType = "pong"
	ServerMessageTypeError             ServerMessageType = "error"
)

// ServerMessage is the envelope of every outbound frame. Data holds one
// of the payload types below, matching Type.
type ServerMessage struct {
	Type ServerMessageType `json:"type"`
	Data any               `json:"data,omitempty"`
}

type UserJoined struct {
	User  User   `json:"user"`
	Users []User `json:"users"`
}

type UserLeft struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Users    []User `json:"users"`
}

type CodeUpdate struct {
	FileName  string     `json:"fileName"`
	Content   string     `json:"content"`
	Operation *Operation `json:"operation,omitempty"`
	UserID    string     `json:"userId"`
	Username  string     `json:"username"`
	Timestamp int64      `json:"timestamp"`
}

type ActiveFileChanged struct {
	File   File   `json:"file"`
	UserID string `json:"userId"`
}

type FileCreated struct {
	File      File   `json:"file"`
	CreatedBy string `json:"createdBy,omitempty"`
}

type FileDeleted struct {
	FileName   string `json:"fileName"`
	ActiveFile string `json:"activeFile"`
	DeletedBy  string `json:"deletedBy,omitempty"`
}

type Replay struct {
	From    int64          `json:"fromTimestamp"`
	To      int64          `json:"toTimestamp"`
	Entries []HistoryEntry `json:"entries"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorCode string

const (
	ErrorCodeInvalid    ErrorCode = "invalid"
	ErrorCodeNotJoined  ErrorCode = "not-joined"
	ErrorCodeNotFound   ErrorCode = "not-found"
	ErrorCodeExists     ErrorCode = "exists"
	ErrorCodeProtected  ErrorCode = "protected"
	ErrorCodeRoomFull   ErrorCode = "room-full"
	ErrorCodeServerFull ErrorCode = "server-full"
	ErrorCodeInternal   ErrorCode = "internal"
)

type ErrorPayload struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Event   ClientMessageType `json:"event,omitempty"`
}
