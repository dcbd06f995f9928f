package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"codeshare/internal/api"
)

type AdminServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAdminServer(adminHandler *api.AdminHandler, passwordHash, addr string) *AdminServer {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/save", api.RequireBasicAuth(passwordHash, adminHandler.SaveHandler))
	mux.HandleFunc("GET /admin/rooms", api.RequireBasicAuth(passwordHash, adminHandler.RoomsHandler))
	mux.HandleFunc("GET /admin/snapshots", api.RequireBasicAuth(passwordHash, adminHandler.SnapshotsHandler))

	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:    addr,
			Handler: Recover(mux),
		},
	}
}

func (s *AdminServer) Start() error {
	log.Printf("Admin API started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
