package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/trader-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/trader-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second

	// DefaultMaxAttempts is how many times a command runs before it is
	// dead-lettered.
	DefaultMaxAttempts = 5

	commandLockTTL = 10 * time.Minute
)

// Worker executes side-effect commands from the command queue
type Worker struct {
	id          string
	queue       *queue.CommandQueue
	executor    Executor
	redisClient *redis.Client
	maxAttempts int
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(commandQueue *queue.CommandQueue, executor Executor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       commandQueue,
		executor:    executor,
		redisClient: redisClient,
		maxAttempts: DefaultMaxAttempts,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker id
func (w *Worker) ID() string { return w.id }

// Start begins processing commands from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if _, err := w.ProcessNext(workerTimeout); err != nil {
				w.log.Error("Error processing command", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// ProcessNext waits up to timeout for one command and handles it. It
// reports whether a command was taken off the queue.
func (w *Worker) ProcessNext(timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(w.ctx, timeout+time.Second)
	defer cancel()

	cmd, err := w.queue.BlockingDequeue(ctx, timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to dequeue command: %w", err)
	}
	if cmd == nil {
		// Queue is empty or timeout occurred - this is normal
		return false, nil
	}
	return true, w.handle(cmd)
}

func (w *Worker) handle(cmd *queuePkg.Command) error {
	if err := cmd.Validate(); err != nil {
		w.log.Warn("Dead-lettering invalid command", "request_id", cmd.RequestID, "error", err)
		return w.queue.DeadLetter(w.ctx, cmd)
	}

	// A command that another worker already ran (or is running) is skipped
	locked, err := w.acquireCommandLock(cmd.RequestID)
	if err != nil {
		return fmt.Errorf("failed to acquire command lock: %w", err)
	}
	if !locked {
		w.log.Info("Command already claimed, skipping",
			"worker_id", w.id,
			"request_id", cmd.RequestID,
		)
		return nil
	}

	start := time.Now()
	err = w.executor.Execute(w.ctx, cmd)
	if err == nil {
		w.log.Info("Command executed",
			"worker_id", w.id,
			"request_id", cmd.RequestID,
			"command", cmd.Text,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	w.releaseCommandLock(cmd.RequestID)
	if errors.Is(err, ErrPermanent) || cmd.Attempts+1 >= w.maxAttempts {
		w.log.Error("Command failed, dead-lettering",
			"worker_id", w.id,
			"request_id", cmd.RequestID,
			"attempts", cmd.Attempts+1,
			"error", err,
		)
		return w.queue.DeadLetter(w.ctx, cmd)
	}

	w.log.Warn("Command failed, re-queueing",
		"worker_id", w.id,
		"request_id", cmd.RequestID,
		"attempts", cmd.Attempts+1,
		"error", err,
	)
	if err := w.queue.Requeue(w.ctx, cmd); err != nil {
		return fmt.Errorf("failed to re-queue command: %w", err)
	}
	return nil
}

func commandLockKey(requestID string) string {
	return fmt.Sprintf("trader-command-lock:%s", requestID)
}

// acquireCommandLock attempts to claim a command
// Returns true if lock was acquired, false if already claimed
func (w *Worker) acquireCommandLock(requestID string) (bool, error) {
	return w.redisClient.SetNX(w.ctx, commandLockKey(requestID), w.id, commandLockTTL).Result()
}

// releaseCommandLock releases the claim so a retry can run
func (w *Worker) releaseCommandLock(requestID string) {
	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{commandLockKey(requestID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release command lock", "error", err, "request_id", requestID)
	}
}
