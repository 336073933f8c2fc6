// Package async hands work from the simulation loop to background
// goroutines without ever blocking the loop.
package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Pipe is a bounded queue drained by one background goroutine. Send never
// blocks: when the buffer is full the oldest value is dropped.
type Pipe[T any] struct {
	name   string
	ch     chan T
	handle func(context.Context, T)
	log    *slog.Logger

	sendMu  sync.Mutex
	dropped atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPipe creates a pipe holding up to size values. handle runs on the
// pipe's goroutine, one value at a time.
func NewPipe[T any](name string, size int, handle func(context.Context, T), log *slog.Logger) *Pipe[T] {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipe[T]{
		name:   name,
		ch:     make(chan T, size),
		handle: handle,
		log:    log,
	}
}

// Send queues v. It reports false when an older value had to be dropped.
func (p *Pipe[T]) Send(v T) bool {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	select {
	case p.ch <- v:
		return true
	default:
	}
	select {
	case <-p.ch:
		p.dropped.Add(1)
	default:
	}
	select {
	case p.ch <- v:
	default:
		p.dropped.Add(1)
	}
	p.log.Warn("Async queue full, dropped oldest", "pipe", p.name, "dropped_total", p.dropped.Load())
	return false
}

// Start runs the drain goroutine until Stop or ctx is done. Call once.
func (p *Pipe[T]) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-p.ch:
				p.handle(ctx, v)
			}
		}
	}()
}

// Stop ends the goroutine, then handles whatever is still queued within
// timeout.
func (p *Pipe[T]) Stop(timeout time.Duration) {
	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if n := p.Drain(ctx); n > 0 {
		p.log.Debug("Async queue drained on stop", "pipe", p.name, "count", n)
	}
}

// Drain handles every queued value on the caller's goroutine and returns
// how many it handled.
func (p *Pipe[T]) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case v := <-p.ch:
			p.handle(ctx, v)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued values.
func (p *Pipe[T]) Len() int { return len(p.ch) }

// Dropped returns how many values were discarded because the pipe was full.
func (p *Pipe[T]) Dropped() int64 { return p.dropped.Load() }
