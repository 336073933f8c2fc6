package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jwebster45206/trader-engine/pkg/clock"
	"github.com/jwebster45206/trader-engine/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client, err := NewClient("redis://"+mr.Addr(), logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func TestCommandQueue_EnqueueAndDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewCommandQueue(client)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	texts := []string{"eco give p1 15.00", "say thanks", "eco give p2 3.50"}
	for _, text := range texts {
		if err := q.Enqueue(ctx, queue.NewCommand(text, "test", now)); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != len(texts) {
		t.Errorf("Expected depth %d, got %d", len(texts), depth)
	}

	peeked, err := q.Peek(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to peek: %v", err)
	}
	if len(peeked) != 2 {
		t.Errorf("Expected 2 peeked commands, got %d", len(peeked))
	}

	for _, text := range texts {
		cmd, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue: %v", err)
		}
		if cmd == nil || cmd.Text != text {
			t.Fatalf("Expected %q, got %+v", text, cmd)
		}
		if cmd.Source != "test" || !cmd.EnqueuedAt.Equal(now) {
			t.Errorf("metadata not preserved: %+v", cmd)
		}
	}

	cmd, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue on empty queue failed: %v", err)
	}
	if cmd != nil {
		t.Errorf("Expected nil from empty queue, got %+v", cmd)
	}
}

func TestCommandQueue_RequeueAndDeadLetter(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewCommandQueue(client)
	ctx := context.Background()

	cmd := queue.NewCommand("say hi", "test", time.Now())
	if err := q.Requeue(ctx, cmd); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	got, err := q.Dequeue(ctx)
	if err != nil || got == nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", got.Attempts)
	}

	if err := q.DeadLetter(ctx, got); err != nil {
		t.Fatalf("DeadLetter failed: %v", err)
	}
	dead, _ := q.DeadLetterDepth(ctx)
	if dead != 1 {
		t.Errorf("Expected 1 dead-lettered command, got %d", dead)
	}
}

func TestCommandQueue_BlockingDequeueTimeout(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewCommandQueue(client)
	ctx := context.Background()

	if err := q.Enqueue(ctx, queue.NewCommand("say hi", "test", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	cmd, err := q.BlockingDequeue(ctx, 100*time.Millisecond)
	if err != nil || cmd == nil {
		t.Fatalf("BlockingDequeue failed: %v, %v", cmd, err)
	}
}

func TestDispatcher_FlushPushesToRedis(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	q := NewCommandQueue(client)
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	d := NewDispatcher(q, "api", clk, logger)

	d.Dispatch("eco give p1 15.00")
	d.Dispatch("say sold")
	if d.Backlog() != 2 {
		t.Errorf("Expected backlog 2, got %d", d.Backlog())
	}

	if n := d.Flush(context.Background()); n != 2 {
		t.Errorf("Expected 2 flushed, got %d", n)
	}
	depth, _ := q.Depth(context.Background())
	if depth != 2 {
		t.Errorf("Expected depth 2, got %d", depth)
	}
	cmd, _ := q.Dequeue(context.Background())
	if cmd.Source != "api" || cmd.Text != "eco give p1 15.00" {
		t.Errorf("unexpected command %+v", cmd)
	}
	if err := cmd.Validate(); err != nil {
		t.Errorf("dispatched command should validate: %v", err)
	}
}
