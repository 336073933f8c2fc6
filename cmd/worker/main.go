package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/trader-engine/internal/config"
	"github.com/jwebster45206/trader-engine/internal/logger"
	"github.com/jwebster45206/trader-engine/internal/services/queue"
	"github.com/jwebster45206/trader-engine/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Trader Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	commandQueue := queue.NewCommandQueue(queueClient)
	log.Info("Queue service initialized successfully")

	var executor worker.Executor
	if cfg.CommandWebhookURL != "" {
		executor = worker.NewWebhookExecutor(cfg.CommandWebhookURL, log)
		log.Info("Sell commands will be posted to webhook", "url", cfg.CommandWebhookURL)
	} else {
		executor = worker.LogExecutor{Logger: log}
		log.Warn("COMMAND_WEBHOOK_URL not set, sell commands will only be logged")
	}

	// The lock client shares the queue connection pool.
	w := worker.New(commandQueue, executor, queueClient.GetRedisClient(), log, cfg.WorkerID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for commands...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give the worker time to finish the current command
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
