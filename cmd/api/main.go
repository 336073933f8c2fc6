package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/trader-engine/internal/config"
	"github.com/jwebster45206/trader-engine/internal/handlers"
	"github.com/jwebster45206/trader-engine/internal/logger"
	"github.com/jwebster45206/trader-engine/internal/middleware"
	"github.com/jwebster45206/trader-engine/internal/services/events"
	"github.com/jwebster45206/trader-engine/internal/services/queue"
	"github.com/jwebster45206/trader-engine/internal/simulation"
	"github.com/jwebster45206/trader-engine/internal/storage"
	"github.com/jwebster45206/trader-engine/pkg/clock"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Trader Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"trader_config", cfg.TraderConfig)

	traderCfg, err := config.LoadTraderOrDefault(cfg.TraderConfig)
	if err != nil {
		log.Error("Failed to load trader config", "path", cfg.TraderConfig, "error", err)
		os.Exit(1)
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	store, rdb, err := storage.Open(storageCtx, cfg, log)
	storageCancel()
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully", "backend", cfg.StorageBackend)

	// With Redis, sell commands go through the command queue to the worker
	// and events are published for SSE subscribers.
	var sink world.CommandSink
	var dispatcher *queue.Dispatcher
	broadcaster := events.NewBroadcaster(rdb, log)
	if rdb != nil {
		commandQueue := queue.NewCommandQueue(queue.NewClientFromRedis(rdb, log))
		dispatcher = queue.NewDispatcher(commandQueue, "api", clock.Real{}, log)
		sink = dispatcher
	}

	sim := simulation.New(simulation.Options{
		Config:  traderCfg,
		Storage: store,
		Sink:    sink,
		Events:  broadcaster,
		Logger:  log,
	})

	initCtx, initCancel := context.WithTimeout(context.Background(), time.Minute)
	err = sim.Init(initCtx)
	initCancel()
	if err != nil {
		log.Error("Failed to initialize simulation", "error", err)
		os.Exit(1)
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if dispatcher != nil {
		dispatcher.Start(runCtx)
	}
	sim.Start(runCtx)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, sim, log))

	npcHandler := handlers.NewNPCHandler(sim, log)
	mux.Handle("/v1/npcs", npcHandler)
	mux.Handle("/v1/npcs/", npcHandler)

	mux.Handle("/v1/interact", handlers.NewInteractHandler(sim, log))
	mux.Handle("/v1/sessions/", handlers.NewSessionHandler(sim, log))

	playerHandler := handlers.NewPlayerHandler(sim, log)
	mux.Handle("/v1/players", playerHandler)
	mux.Handle("/v1/players/", playerHandler)

	mux.Handle("/v1/admin/", handlers.NewAdminHandler(sim, cfg.TraderConfig, log))

	eventsHandler := handlers.NewEventsHandler(rdb, log)
	mux.Handle("/v1/events", eventsHandler)
	mux.Handle("/v1/events/", eventsHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log)(mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the event stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Teardown saves state; the dispatcher drains after so the last sale
	// commands still reach the queue.
	if err := sim.Teardown(shutdownCtx); err != nil {
		log.Error("Error during simulation teardown", "error", err)
	}
	if dispatcher != nil {
		dispatcher.Stop(5 * time.Second)
	}
	stopRun()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
