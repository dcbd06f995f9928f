package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ClientMessageType string

const (
	ClientMessageTypeJoinRoom     ClientMessageType = "join-room"
	ClientMessageTypeCodeChange   ClientMessageType = "code-change"
	ClientMessageTypeCursorChange ClientMessageType = "cursor-change"
	ClientMessageTypeSwitchFile   ClientMessageType = "switch-file"
	ClientMessageTypeCreateFile   ClientMessageType = "create-file"
	ClientMessageTypeDeleteFile   ClientMessageType = "delete-file"
	ClientMessageTypeChatMessage  ClientMessageType = "chat-message"
	ClientMessageTypeGetReplay    ClientMessageType = "get-replay"
	ClientMessageTypePing         ClientMessageType = "ping"
)

// ClientMessage is the envelope of every inbound frame.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Data json.RawMessage   `json:"data,omitempty"`
}

// Event is a decoded, validated inbound message.
// The set of implementations is closed.
type Event interface {
	Kind() ClientMessageType
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// CodeChange targets FileName, or the active file when it is empty.
type CodeChange struct {
	FileName  string     `json:"fileName,omitempty"`
	Content   string     `json:"content"`
	Operation *Operation `json:"operation,omitempty"`
}

type CursorChange struct {
	FileName string
	Line     int
	Column   int
}

type SwitchFile struct {
	FileName string `json:"fileName"`
}

type CreateFile struct {
	FileName string `json:"fileName"`
	Content  string `json:"content,omitempty"`
	Language string `json:"language,omitempty"`
}

type DeleteFile struct {
	FileName string `json:"fileName"`
}

type ChatSend struct {
	Message string `json:"message"`
}

// GetReplay bounds are Unix milliseconds; nil means open.
type GetReplay struct {
	From *int64 `json:"fromTimestamp,omitempty"`
	To   *int64 `json:"toTimestamp,omitempty"`
}

type Ping struct{}

func (JoinRoom) Kind() ClientMessageType     { return ClientMessageTypeJoinRoom }
func (CodeChange) Kind() ClientMessageType   { return ClientMessageTypeCodeChange }
func (CursorChange) Kind() ClientMessageType { return ClientMessageTypeCursorChange }
func (SwitchFile) Kind() ClientMessageType   { return ClientMessageTypeSwitchFile }
func (CreateFile) Kind() ClientMessageType   { return ClientMessageTypeCreateFile }
func (DeleteFile) Kind() ClientMessageType   { return ClientMessageTypeDeleteFile }
func (ChatSend) Kind() ClientMessageType     { return ClientMessageTypeChatMessage }
func (GetReplay) Kind() ClientMessageType    { return ClientMessageTypeGetReplay }
func (Ping) Kind() ClientMessageType         { return ClientMessageTypePing }

// Decode validates the payload for the message type and returns the typed event.
// Errors wrap ErrInvalid.
func (m ClientMessage) Decode() (Event, error) {
	switch m.Type {
	case ClientMessageTypeJoinRoom:
		var e JoinRoom
		if err := m.decodeObject(&e); err != nil {
			return nil, err
		}
		if e.RoomID == "" {
			return nil, fmt.Errorf("%w: roomId is required", ErrInvalid)
		}
		return e, nil

	case ClientMessageTypeCodeChange:
		var raw struct {
			FileName  string     `json:"fileName"`
			Content   *string    `json:"content"`
			Operation *Operation `json:"operation"`
		}
		if err := m.decodeObject(&raw); err != nil {
			return nil, err
		}
		if raw.Content == nil {
			return nil, fmt.Errorf("%w: content is required", ErrInvalid)
		}
		if op := raw.Operation; op != nil && op.Position < 0 {
			return nil, fmt.Errorf("%w: operation position must not be negative", ErrInvalid)
		}
		return CodeChange{FileName: raw.FileName, Content: *raw.Content, Operation: raw.Operation}, nil

	case ClientMessageTypeCursorChange:
		return m.decodeCursor()

	case ClientMessageTypeSwitchFile:
		name, err := m.decodeName("fileName")
		if err != nil {
			return nil, err
		}
		return SwitchFile{FileName: name}, nil

	case ClientMessageTypeCreateFile:
		var e CreateFile
		if err := m.decodeObject(&e); err != nil {
			return nil, err
		}
		if e.FileName == "" {
			return nil, fmt.Errorf("%w: fileName is required", ErrInvalid)
		}
		return e, nil

	case ClientMessageTypeDeleteFile:
		name, err := m.decodeName("fileName")
		if err != nil {
			return nil, err
		}
		return DeleteFile{FileName: name}, nil

	case ClientMessageTypeChatMessage:
		text, err := m.decodeName("message")
		if err != nil {
			return nil, err
		}
		return ChatSend{Message: text}, nil

	case ClientMessageTypeGetReplay:
		var e GetReplay
		if len(bytes.TrimSpace(m.Data)) > 0 && !isNull(m.Data) {
			if err := m.decodeObject(&e); err != nil {
				return nil, err
			}
		}
		return e, nil

	case ClientMessageTypePing:
		return Ping{}, nil
	}

	return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalid, m.Type)
}

func (m ClientMessage) decodeObject(v any) error {
	if len(m.Data) == 0 || isNull(m.Data) {
		return fmt.Errorf("%w: %s requires a payload", ErrInvalid, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalid, m.Type, err)
	}
	return nil
}

// decodeName accepts either a bare JSON string or an object carrying
// the value under field.
func (m ClientMessage) decodeName(field string) (string, error) {
	if len(m.Data) == 0 || isNull(m.Data) {
		return "", fmt.Errorf("%w: %s requires a payload", ErrInvalid, m.Type)
	}

	var s string
	if err := json.Unmarshal(m.Data, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: %s must not be empty", ErrInvalid, field)
		}
		return s, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(m.Data, &obj); err != nil {
		return "", fmt.Errorf("%w: %s payload: %v", ErrInvalid, m.Type, err)
	}
	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalid, field)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s must not be empty", ErrInvalid, field)
	}
	return s, nil
}

// decodeCursor accepts both {line, ch} and {lineNumber, column}.
// Non-integer coordinates are rejected and negatives clamp to zero.
func (m ClientMessage) decodeCursor() (Event, error) {
	var raw struct {
		Line       *int   `json:"line"`
		Ch         *int   `json:"ch"`
		LineNumber *int   `json:"lineNumber"`
		Column     *int   `json:"column"`
		FileName   string `json:"fileName"`
	}
	if err := m.decodeObject(&raw); err != nil {
		return nil, err
	}

	var e CursorChange
	e.FileName = raw.FileName
	switch {
	case raw.Line != nil:
		e.Line = *raw.Line
		if raw.Ch != nil {
			e.Column = *raw.Ch
		} else if raw.Column != nil {
			e.Column = *raw.Column
		}
	case raw.LineNumber != nil:
		e.Line = *raw.LineNumber
		if raw.Column != nil {
			e.Column = *raw.Column
		}
	default:
		return nil, fmt.Errorf("%w: cursor requires line or lineNumber", ErrInvalid)
	}

	e.Line = max(e.Line, 0)
	e.Column = max(e.Column, 0)
	return e, nil
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
