package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/trader-engine/pkg/queue"
)

const (
	commandsKey   = "trader:commands"
	deadLetterKey = "trader:commands:dead"
)

// CommandQueue holds side-effect commands for the worker
type CommandQueue struct {
	client *Client
}

func NewCommandQueue(client *Client) *CommandQueue {
	return &CommandQueue{
		client: client,
	}
}

// Enqueue adds a command to the end of the queue
func (q *CommandQueue) Enqueue(ctx context.Context, cmd *queue.Command) error {
	data, err := cmd.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, commandsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}
	return nil
}

// Requeue puts a failed command back at the end with its attempt count
// raised
func (q *CommandQueue) Requeue(ctx context.Context, cmd *queue.Command) error {
	cmd.Attempts++
	return q.Enqueue(ctx, cmd)
}

// Dequeue removes and returns the next command
// Returns nil if queue is empty
func (q *CommandQueue) Dequeue(ctx context.Context) (*queue.Command, error) {
	result, err := q.client.rdb.LPop(ctx, commandsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue command: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for a command. It returns nil when
// the timeout passes with the queue empty.
func (q *CommandQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Command, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, commandsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue command: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

func parse(data string) (*queue.Command, error) {
	cmd, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	return cmd, nil
}

// DeadLetter parks a command that will not be retried
func (q *CommandQueue) DeadLetter(ctx context.Context, cmd *queue.Command) error {
	data, err := cmd.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, deadLetterKey, data).Err(); err != nil {
		return fmt.Errorf("failed to dead-letter command: %w", err)
	}
	return nil
}

// Depth returns the number of queued commands
func (q *CommandQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, commandsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// DeadLetterDepth returns the number of dead-lettered commands
func (q *CommandQueue) DeadLetterDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, deadLetterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get dead letter depth: %w", err)
	}
	return int(count), nil
}

// Peek returns up to limit queued commands without removing them
func (q *CommandQueue) Peek(ctx context.Context, limit int) ([]*queue.Command, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1 // Get all
	}
	items, err := q.client.rdb.LRange(ctx, commandsKey, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to peek commands: %w", err)
	}
	out := make([]*queue.Command, 0, len(items))
	for _, it := range items {
		cmd, err := parse(it)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}
