package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/config"
	"chatsync/internal/devserver"
	"chatsync/internal/security"
	"chatsync/internal/store/sqlite"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	hub := devserver.NewHub()
	pingCtx, stopPing := context.WithCancel(context.Background())
	defer stopPing()
	go hub.PingLoop(pingCtx, cfg.PingInterval, cfg.PongTimeout)

	server := devserver.NewServer(
		cfg,
		sqlite.NewUserRepo(db),
		sqlite.NewMessageRepo(db),
		tokenSvc,
		passwordHasher,
		hub,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting chatsync dev server on %s\n", cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
