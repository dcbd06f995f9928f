package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"codeshare/internal/models"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size; whole files travel in code-change.
	maxMessageSize = 1 << 20
)

type wsConnection interface {
	Close() error
	WriteJSON(v any) error
	ReadJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

type messageHub interface {
	roomHub
	Connect(connID string) chan models.ServerMessage
	Disconnect(connID string)
}

type inbound struct {
	msg models.ClientMessage
	err error
}

type Connection struct {
	ws         wsConnection
	hub        messageHub
	id         string
	session    *Session
	limiter    *rate.Limiter
	pingPeriod time.Duration
	fromClient chan inbound
	fromServer chan models.ServerMessage
	errorCh    chan error
}

func NewConnection(
	hub messageHub,
	ws wsConnection,
	connID string,
	limiter *rate.Limiter,
) *Connection {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Connection{
		ws:         ws,
		hub:        hub,
		id:         connID,
		session:    NewSession(hub, connID),
		limiter:    limiter,
		pingPeriod: pingPeriod,
		fromClient: make(chan inbound),
		fromServer: hub.Connect(connID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Handle runs the connection until the peer goes away or ctx is done.
// The user is removed from its room before Handle returns.
func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.session.Close()
		c.hub.Disconnect(c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !isClosure(err) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var in inbound
		if err := c.ws.ReadJSON(&in.msg); err != nil {
			if !isDecodeError(err) {
				return err
			}
			// The frame is consumed; the connection stays usable.
			in.err = fmt.Errorf("%w: malformed message: %v", models.ErrInvalid, err)
		}
		select {
		case c.fromClient <- in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case in := <-c.fromClient:
			for _, msg := range c.processClientMessage(ctx, in) {
				if err := c.write(msg); err != nil {
					return err
				}
			}
		case msg, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.write(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) write(msg models.ServerMessage) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *Connection) processClientMessage(ctx context.Context, in inbound) (replies []models.ServerMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling message",
				"conn_id", c.id, "room_id", c.session.RoomID(), "type", in.msg.Type,
				"error", r, "stack", string(debug.Stack()))
			replies = c.session.fail(in.msg.Type, errors.New("internal error"))
		}
	}()

	if in.err != nil {
		return c.session.fail(in.msg.Type, in.err)
	}
	if !c.limiter.Allow() {
		slog.Warn("rate limit exceeded, dropping message", "conn_id", c.id, "type", in.msg.Type)
		return nil
	}
	return c.session.Handle(ctx, in.msg)
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func isClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure)
}
