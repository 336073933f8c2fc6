package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwebster45206/trader-engine/internal/services/async"
	"github.com/jwebster45206/trader-engine/pkg/clock"
	"github.com/jwebster45206/trader-engine/pkg/queue"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// DefaultBuffer is the dispatcher's in-process backlog.
const DefaultBuffer = 1024

// Dispatcher is the world's command sink. Commands are accepted without
// blocking and pushed to Redis from a background goroutine.
type Dispatcher struct {
	queue  *CommandQueue
	source string
	clock  clock.Clock
	logger *slog.Logger
	pipe   *async.Pipe[*queue.Command]
}

var _ world.CommandSink = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher tagging commands with source.
func NewDispatcher(q *CommandQueue, source string, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		queue:  q,
		source: source,
		clock:  clk,
		logger: logger,
	}
	d.pipe = async.NewPipe("commands", DefaultBuffer, d.push, logger)
	return d
}

// Dispatch implements world.CommandSink.
func (d *Dispatcher) Dispatch(text string) {
	d.pipe.Send(queue.NewCommand(text, d.source, d.clock.Now()))
}

func (d *Dispatcher) push(ctx context.Context, cmd *queue.Command) {
	if err := d.queue.Enqueue(ctx, cmd); err != nil {
		d.logger.Error("Failed to enqueue command", "request_id", cmd.RequestID, "error", err)
		return
	}
	d.logger.Debug("Command enqueued", "request_id", cmd.RequestID, "command", cmd.Text)
}

// Start begins pushing commands.
func (d *Dispatcher) Start(ctx context.Context) { d.pipe.Start(ctx) }

// Stop flushes what is buffered, waiting at most timeout.
func (d *Dispatcher) Stop(timeout time.Duration) { d.pipe.Stop(timeout) }

// Flush pushes everything buffered on the caller's goroutine.
func (d *Dispatcher) Flush(ctx context.Context) int { return d.pipe.Drain(ctx) }

// Backlog returns the number of commands not yet pushed.
func (d *Dispatcher) Backlog() int { return d.pipe.Len() }
