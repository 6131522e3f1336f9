package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/jmfontan/libropack/internal/config"
	httpapp "github.com/jmfontan/libropack/internal/http"
	"github.com/jmfontan/libropack/internal/httpclient"
	"github.com/jmfontan/libropack/internal/indexer"
	"github.com/jmfontan/libropack/internal/installer"
	"github.com/jmfontan/libropack/internal/logger"
	"github.com/jmfontan/libropack/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to open catalog store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	client := httpclient.NewClient(nil)
	ins := installer.New(db, client, cfg, appLogger)

	worker := indexer.New(db, cfg, appLogger)
	worker.Start()
	defer worker.Stop()

	// Sweep stale staging/trash entries at start and daily after that.
	ins.Janitor()
	janitorStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.JanitorMaxAge)
		defer ticker.Stop()
		for {
			select {
			case <-janitorStop:
				return
			case <-ticker.C:
				ins.Janitor()
			}
		}
	}()
	defer close(janitorStop)

	handler := httpapp.NewHandler(db, ins, worker, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server shutdown failed", "error", err)
	}
}
