package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"papertrade-go/internal/api"
	"papertrade-go/internal/config"
	"papertrade-go/internal/database"
	"papertrade-go/internal/events"
	"papertrade-go/internal/ledger"
	"papertrade-go/internal/logger"
	"papertrade-go/internal/portfolio"
	"papertrade-go/internal/quote"
	"papertrade-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Server.Name, cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	startingCash, err := cfg.Ledger.Cash()
	if err != nil {
		log.Fatal("Invalid ledger configuration", zap.Error(err))
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")
	defer database.Close(db, log)

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, closeGateway, err := quote.NewGateway(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize quote gateway", zap.Error(err))
	}
	defer closeGateway()

	publisher := events.NewPublisher(cfg.Events, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	engine := ledger.NewEngine(log, store.New(db), gateway, publisher, startingCash)
	valuator := portfolio.NewValuator(engine, gateway, log)
	handler := api.NewHandler(log.Named("api"), engine, valuator, gateway)
	router := api.NewRouter(handler, cfg.Server.Name, cfg.Quote.Provider, log)

	server := api.NewServer(cfg.Server, router, log)
	errCh := server.Start()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, gracefully shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}
