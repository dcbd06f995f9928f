package ws

import (
	"log/slog"
	"net"
	"net/http"

	"codeshare/internal/ratelimit"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ServerConfig struct {
	// AllowedOrigin is "*" or a single origin.
	AllowedOrigin   string
	EventsPerSecond float64
	EventBurst      int
}

type Server struct {
	hub       *Hub
	addresses *ratelimit.Addresses
	config    ServerConfig
	upgrader  *websocket.Upgrader
}

func NewServer(hub *Hub, addresses *ratelimit.Addresses, config ServerConfig) *Server {
	return &Server{
		hub:       hub,
		addresses: addresses,
		config:    config,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(config.AllowedOrigin, r.Header.Get("Origin"))
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	addr := remoteHost(r)
	if s.addresses != nil && !s.addresses.Allow(addr) {
		slog.Warn("connection rate limit exceeded", "addr", addr)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("error upgrading to websocket", "addr", addr, "error", err)
		return
	}

	connID := uuid.NewString()
	conn := NewConnection(s.hub, ws, connID, ratelimit.Events(s.config.EventsPerSecond, s.config.EventBurst))

	slog.Info("client connected", "conn_id", connID, "addr", addr)
	if err := conn.Handle(r.Context()); err != nil {
		slog.Warn("connection closed with error", "conn_id", connID, "error", err)
	}
	slog.Info("client disconnected", "conn_id", connID)
}

func originAllowed(allowed, origin string) bool {
	// Non-browser clients send no Origin.
	return allowed == "" || allowed == "*" || origin == "" || origin == allowed
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
