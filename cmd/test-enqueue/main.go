package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/trader-engine/internal/services/queue"
	pkgqueue "github.com/jwebster45206/trader-engine/pkg/queue"
)

func main() {
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis URL or host:port")
	text := flag.String("command", "", "command to enqueue (default: a test payout)")
	count := flag.Int("n", 1, "number of commands to enqueue")
	peek := flag.Int("peek", 5, "number of queued commands to print")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := queue.NewClient(*redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	fmt.Println("Connected to Redis successfully!")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := queue.NewCommandQueue(client)
	for i := 0; i < *count; i++ {
		cmdText := *text
		if cmdText == "" {
			cmdText = fmt.Sprintf("eco give %s 1.00", uuid.New())
		}
		cmd := pkgqueue.NewCommand(cmdText, "test-enqueue", time.Now())
		if err := q.Enqueue(ctx, cmd); err != nil {
			log.Fatal("Failed to enqueue command:", err)
		}
		fmt.Printf("✅ Enqueued command %s: %s\n", cmd.RequestID, cmd.Text)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}
	dead, err := q.DeadLetterDepth(ctx)
	if err != nil {
		log.Fatal("Failed to get dead letter depth:", err)
	}
	fmt.Printf("\n📊 Queue depth: %d commands (%d dead-lettered)\n", depth, dead)

	if *peek > 0 {
		head, err := q.Peek(ctx, *peek)
		if err != nil {
			log.Fatal("Failed to peek queue:", err)
		}
		for _, c := range head {
			fmt.Printf("   %s  attempts=%d  %s\n", c.RequestID, c.Attempts, c.Text)
		}
	}

	fmt.Println("\n💡 Now start the worker to see it execute these commands!")
	fmt.Println("   Run: go run ./cmd/worker")
}
