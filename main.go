package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeshare/internal/api"
	"codeshare/internal/autosave"
	"codeshare/internal/commands"
	"codeshare/internal/config"
	"codeshare/internal/http"
	"codeshare/internal/ratelimit"
	"codeshare/internal/room"
	"codeshare/internal/snapshot"
	"codeshare/internal/ws"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("codeshare", flag.ContinueOnError)
	saveNow := flags.Bool("save-now", false, "Ask the running server to snapshot every room and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*saveNow)
	if err != nil {
		return err
	}

	if *saveNow {
		return commands.SaveNow(&oshttp.Client{Timeout: 30 * time.Second}, cfg)
	}

	store, err := snapshot.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close snapshot store", "error", err)
		}
	}()

	var seed room.SeedFunc
	if cfg.RestoreOnCreate {
		seed = snapshot.Seed(store)
	}

	hub := ws.NewHub(ws.HubConfig{
		MaxHistory: cfg.MaxHistory,
		MaxChat:    cfg.MaxChat,
		Limits: room.Limits{
			MaxRooms:        cfg.MaxRooms,
			MaxUsersPerRoom: cfg.MaxUsersPerRoom,
		},
		Seed: seed,
	})

	scheduler := autosave.New(hub.Rooms(), store, autosave.Config{
		Interval:   cfg.AutoSaveInterval,
		StaleAfter: cfg.SaveStaleAfter,
	})

	// Sessions outlive the signal until the final snapshot is written;
	// the last user leaving a room deletes it.
	sessionCtx, endSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer endSessions()

	wsServer := ws.NewServer(hub, ratelimit.NewAddresses(sessionCtx, cfg.ConnectsPerMinute), ws.ServerConfig{
		AllowedOrigin:   cfg.CORSOrigin,
		EventsPerSecond: cfg.EventsPerSecond,
		EventBurst:      cfg.EventBurst,
	})

	apiServer := http.NewAPIServer(sessionCtx, api.New(hub.Rooms()), wsServer, cfg.CORSOrigin, cfg.APIAddr)
	adminServer := http.NewAdminServer(api.NewAdminHandler(hub.Rooms(), scheduler, store), cfg.AdminPasswordHash, cfg.AdminAddr)

	g, gCtx := errgroup.WithContext(ctx)

	// Start Admin Server
	g.Go(func() error {
		err := adminServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Start API Server
	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Admin server shutdown error: %v", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}

		saved, err := scheduler.SaveAll(shutdownCtx)
		if err != nil {
			slog.Error("final save incomplete", "saved", saved, "error", err)
		} else {
			log.Printf("Saved %d rooms", saved)
		}

		endSessions()
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
