package http

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"

	"codeshare/internal/api"
	"codeshare/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

// NewAPIServer serves the REST surface and the websocket endpoint. Request
// contexts derive from baseCtx, so cancelling it ends live sessions.
func NewAPIServer(baseCtx context.Context, apiHandlers *api.API, wsServer *ws.Server, corsOrigin, addr string) *APIServer {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", apiHandlers.HealthHandler)

	// API endpoints
	mux.HandleFunc("GET /api/rooms", apiHandlers.ListRoomsHandler)
	mux.HandleFunc("GET /api/rooms/{id}", apiHandlers.GetRoomHandler)
	mux.HandleFunc("POST /api/rooms/{id}/files", apiHandlers.CreateFileHandler)
	mux.HandleFunc("GET /api/rooms/{id}/preview/{name...}", apiHandlers.PreviewHandler)

	// WebSocket endpoint
	mux.HandleFunc("GET /ws", wsServer.HandleConnections)

	if addr == "" {
		addr = ":3001"
	}

	return &APIServer{
		server: &http.Server{
			Addr:        addr,
			Handler:     Recover(CORS(corsOrigin, mux)),
			BaseContext: func(net.Listener) context.Context { return baseCtx },
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
