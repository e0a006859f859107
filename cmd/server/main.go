package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/appsync/internal/api"
	"github.com/prudhvinik1/appsync/internal/app"
	"github.com/prudhvinik1/appsync/internal/config"
	"github.com/prudhvinik1/appsync/internal/logging"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer application.Close()

	// Daily metadata refresh
	schedule, err := application.Scheduler.Start(cfg.Sync.Schedule)
	if err != nil {
		logger.Fatal("Failed to start sync schedule", zap.Error(err))
	}

	apiServer := api.NewServer(api.Dependencies{
		Engine:   application.Engine,
		Batch:    application.Orchestrator,
		Importer: application.Importer,
		Auth:     application.Auth,
		Apps:     application.Apps,
		Status:   application.Status,
	}, logger.Named("api"))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: apiServer.Router(),
	}

	// graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		server.Shutdown(ctx)
		select {
		case <-application.Scheduler.Stop(schedule).Done():
		case <-ctx.Done():
			logger.Warn("Scheduled sync did not finish in time")
		}
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("Background syncs did not finish in time", zap.Error(err))
		}
	}()

	logger.Info("Starting server",
		zap.String("port", cfg.ServerPort),
		zap.String("sync_schedule", cfg.Sync.Schedule),
		zap.Time("next_sync", schedule.Next()))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
	<-shutdownDone

	logger.Info("Server stopped gracefully")
}
