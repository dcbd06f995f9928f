package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeshare/internal/content"
	"codeshare/internal/models"
	"codeshare/internal/room"
)

var errNotJoined = errors.New("join a room first")

type roomHub interface {
	Join(ctx context.Context, roomID, connID, username string) (*room.Room, models.User, error)
	Leave(roomID, connID string)
}

type sessionState int

const (
	stateUnjoined sessionState = iota
	stateJoined
	stateTerminated
)

// Session is the per-connection membership record:
// unjoined -> joined(room, user) -> terminated.
// It is owned by a single connection goroutine and is not safe for
// concurrent use.
type Session struct {
	hub    roomHub
	connID string
	state  sessionState
	room   *room.Room
	user   models.User
	now    func() time.Time
}

func NewSession(hub roomHub, connID string) *Session {
	return &Session{hub: hub, connID: connID, now: time.Now}
}

func (s *Session) RoomID() string {
	if s.room == nil {
		return ""
	}
	return s.room.ID
}

// Handle applies one inbound message and returns the messages addressed
// to the caller only. Broadcasts go out through the room.
func (s *Session) Handle(ctx context.Context, msg models.ClientMessage) []models.ServerMessage {
	if s.state == stateTerminated {
		return nil
	}

	ev, err := msg.Decode()
	if err != nil {
		return s.fail(msg.Type, err)
	}

	switch e := ev.(type) {
	case models.Ping:
		return reply(models.ServerMessageTypePong, models.Pong{Timestamp: s.now().UnixMilli()})
	case models.JoinRoom:
		return s.join(ctx, e)
	}

	if s.state != stateJoined {
		return s.fail(ev.Kind(), errNotJoined)
	}

	switch e := ev.(type) {
	case models.CodeChange:
		// Edits to missing files are dropped without a reply.
		s.room.UpdateCode(s.connID, e.FileName, e.Content, e.Operation)

	case models.CursorChange:
		s.room.UpdateCursor(s.connID, e)

	case models.SwitchFile:
		if _, err := s.room.SwitchFile(s.connID, e.FileName); err != nil {
			return s.fail(ev.Kind(), err)
		}

	case models.CreateFile:
		if err := checkFile(e.FileName, e.Content); err != nil {
			return s.fail(ev.Kind(), err)
		}
		if _, err := s.room.CreateFile(s.connID, e.FileName, e.Content, e.Language); err != nil {
			return s.fail(ev.Kind(), err)
		}

	case models.DeleteFile:
		if err := s.room.DeleteFile(s.connID, e.FileName); err != nil {
			return s.fail(ev.Kind(), err)
		}

	case models.ChatSend:
		s.room.AddChat(s.connID, e.Message)

	case models.GetReplay:
		return reply(models.ServerMessageTypeReplay, s.room.Replay(e.From, e.To))
	}

	return nil
}

func (s *Session) join(ctx context.Context, e models.JoinRoom) []models.ServerMessage {
	if err := content.ValidateRoomID(e.RoomID); err != nil {
		return s.fail(e.Kind(), fmt.Errorf("%w: %v", models.ErrInvalid, err))
	}

	// Joining the current room again only refreshes the state.
	if s.state == stateJoined && s.room.ID == e.RoomID {
		return reply(models.ServerMessageTypeRoomState, s.room.State())
	}

	r, user, err := s.hub.Join(ctx, e.RoomID, s.connID, content.Username(e.Username))
	if err != nil {
		// The current membership, if any, is kept.
		return s.fail(e.Kind(), err)
	}

	// One room at a time.
	s.leave()
	s.room, s.user, s.state = r, user, stateJoined

	return reply(models.ServerMessageTypeRoomState, r.State())
}

func (s *Session) leave() {
	if s.state != stateJoined {
		return
	}
	s.hub.Leave(s.room.ID, s.connID)
	s.room, s.user, s.state = nil, models.User{}, stateUnjoined
}

// Close removes the user from its room. Further messages are ignored.
func (s *Session) Close() {
	s.leave()
	s.state = stateTerminated
}

func (s *Session) fail(event models.ClientMessageType, err error) []models.ServerMessage {
	return reply(models.ServerMessageTypeError, models.ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
		Event:   event,
	})
}

func checkFile(name, text string) error {
	if err := content.ValidateFileName(name); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if err := content.CheckText(text); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	return nil
}

func reply(t models.ServerMessageType, data any) []models.ServerMessage {
	return []models.ServerMessage{{Type: t, Data: data}}
}

func errorCode(err error) models.ErrorCode {
	switch {
	case errors.Is(err, models.ErrInvalid):
		return models.ErrorCodeInvalid
	case errors.Is(err, errNotJoined):
		return models.ErrorCodeNotJoined
	case errors.Is(err, models.ErrNotFound):
		return models.ErrorCodeNotFound
	case errors.Is(err, models.ErrExists):
		return models.ErrorCodeExists
	case errors.Is(err, models.ErrProtected):
		return models.ErrorCodeProtected
	case errors.Is(err, models.ErrRoomFull):
		return models.ErrorCodeRoomFull
	case errors.Is(err, models.ErrServerFull):
		return models.ErrorCodeServerFull
	}
	return models.ErrorCodeInternal
}
