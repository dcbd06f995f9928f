package ws

import (
	"context"
	"log/slog"
	"sync"

	"codeshare/internal/models"
	"codeshare/internal/room"
)

const defaultQueueSize = 256

type HubConfig struct {
	MaxHistory int
	MaxChat    int
	Limits     room.Limits
	// Seed restores new rooms from storage when set.
	Seed room.SeedFunc
	// QueueSize is the per-connection outbound buffer.
	QueueSize int
}

// Hub connects websocket sessions to the room registry. Rooms push their
// broadcasts through deliver, which never blocks: a connection whose
// queue is full loses the message.
type Hub struct {
	rooms  *room.Registry
	limits room.Limits

	// Map of connID -> outbound queue
	connected map[string]chan models.ServerMessage
	queueSize int

	mu sync.RWMutex
}

func NewHub(config HubConfig) *Hub {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	h := &Hub{
		limits:    config.Limits,
		connected: make(map[string]chan models.ServerMessage),
		queueSize: config.QueueSize,
	}
	h.rooms = room.NewRegistry(room.Options{
		MaxHistory: config.MaxHistory,
		MaxChat:    config.MaxChat,
		Broadcast:  h.deliver,
		Seed:       config.Seed,
	})
	return h
}

func (h *Hub) Rooms() *room.Registry {
	return h.rooms
}

// Connect registers the outbound queue of a new connection.
func (h *Hub) Connect(connID string) chan models.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ServerMessage, h.queueSize)
	h.connected[connID] = ch
	return ch
}

func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.connected[connID]; ok {
		close(ch)
		delete(h.connected, connID)
	}
}

func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connected)
}

func (h *Hub) Join(ctx context.Context, roomID, connID, username string) (*room.Room, models.User, error) {
	return h.rooms.Join(ctx, roomID, connID, username, h.limits)
}

func (h *Hub) Leave(roomID, connID string) {
	if h.rooms.Leave(roomID, connID) {
		slog.Info("room closed", "room_id", roomID)
	}
}

// deliver is the room broadcast callback. It runs under the room lock.
func (h *Hub) deliver(receiverID string, msg models.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, online := h.connected[receiverID]
	if !online {
		return
	}

	select {
	case ch <- msg:
	default:
		slog.Warn("outbound queue full, dropping message", "conn_id", receiverID, "type", msg.Type)
	}
}
