// Package scheduler runs delayed and repeating tasks on a single logical
// execution context. Task functions never overlap: they run one after
// another from RunDue, which is driven either by Run (real time) or by
// Advance (simulated time on a clock.Manual).
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/trader-engine/pkg/clock"
)

const (
	// DefaultResolution is how often Run checks for due tasks.
	DefaultResolution = 50 * time.Millisecond
	// MinInterval is the shortest accepted repeat interval.
	MinInterval = time.Millisecond

	inboxSize = 256
)

// Task is a scheduled unit of work.
type Task struct {
	id        uint64
	name      string
	next      time.Time
	interval  time.Duration
	fn        func()
	cancelled atomic.Bool
	index     int
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Cancel stops the task from running again. Safe to call more than once and
// from any goroutine, including from inside the task itself.
func (t *Task) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Repeating reports whether the task reschedules itself.
func (t *Task) Repeating() bool { return t.interval > 0 }

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if !h[i].next.Equal(h[j].next) {
		return h[i].next.Before(h[j].next)
	}
	return h[i].id < h[j].id
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler orders tasks by due time, then creation order.
type Scheduler struct {
	clock      clock.Clock
	log        *slog.Logger
	resolution time.Duration

	mu    sync.Mutex
	tasks taskHeap
	seq   uint64

	inbox   chan func()
	running atomic.Bool
}

// New creates a scheduler on clk.
func New(clk clock.Clock, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		clock:      clk,
		log:        log,
		resolution: DefaultResolution,
		inbox:      make(chan func(), inboxSize),
	}
}

// SetResolution changes the Run tick. Call before Run.
func (s *Scheduler) SetResolution(d time.Duration) {
	if d > 0 {
		s.resolution = d
	}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() clock.Clock { return s.clock }

func (s *Scheduler) schedule(name string, delay, interval time.Duration, fn func()) *Task {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &Task{
		id:       s.seq,
		name:     name,
		next:     s.clock.Now().Add(delay),
		interval: interval,
		fn:       fn,
	}
	heap.Push(&s.tasks, t)
	return t
}

// Every runs fn every interval, first after one interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) *Task {
	return s.EveryAfter(name, interval, interval, fn)
}

// EveryAfter runs fn after delay and then every interval.
func (s *Scheduler) EveryAfter(name string, delay, interval time.Duration, fn func()) *Task {
	if interval < MinInterval {
		interval = MinInterval
	}
	return s.schedule(name, delay, interval, fn)
}

// After runs fn once after delay.
func (s *Scheduler) After(name string, delay time.Duration, fn func()) *Task {
	return s.schedule(name, delay, 0, fn)
}

// Pending returns the number of live (not cancelled) tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.Cancelled() {
			n++
		}
	}
	return n
}

// pop removes and returns the earliest live task due at or before now.
func (s *Scheduler) pop(now time.Time) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.tasks.Len() > 0 {
		t := s.tasks[0]
		if t.Cancelled() {
			heap.Pop(&s.tasks)
			continue
		}
		if t.next.After(now) {
			return nil
		}
		return heap.Pop(&s.tasks).(*Task)
	}
	return nil
}

// nextDue returns the due time of the earliest live task.
func (s *Scheduler) nextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.tasks.Len() > 0 {
		t := s.tasks[0]
		if t.Cancelled() {
			heap.Pop(&s.tasks)
			continue
		}
		return t.next, true
	}
	return time.Time{}, false
}

// RunDue runs every task due now, in due order. Repeating tasks that fell
// behind run once and resume from now rather than replaying missed runs.
// It returns the number of tasks run.
func (s *Scheduler) RunDue() int {
	now := s.clock.Now()
	ran := 0
	for {
		t := s.pop(now)
		if t == nil {
			return ran
		}
		s.call(t.name, t.fn)
		ran++
		if t.interval <= 0 || t.Cancelled() {
			continue
		}
		t.next = t.next.Add(t.interval)
		if !t.next.After(now) {
			t.next = now.Add(t.interval)
		}
		s.mu.Lock()
		heap.Push(&s.tasks, t)
		s.mu.Unlock()
	}
}

func (s *Scheduler) call(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Scheduled task panicked", "task", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Advance moves a manual clock forward by d, stopping at every due instant
// on the way so tasks observe the time they were scheduled for. It panics
// if the scheduler does not run on a *clock.Manual.
func (s *Scheduler) Advance(d time.Duration) {
	m, ok := s.clock.(*clock.Manual)
	if !ok {
		panic("scheduler: Advance requires a *clock.Manual")
	}
	target := m.Now().Add(d)
	for {
		next, ok := s.nextDue()
		if !ok || next.After(target) {
			break
		}
		if next.After(m.Now()) {
			m.Set(next)
		}
		s.RunDue()
	}
	m.Set(target)
	s.RunDue()
}

// Run drives the scheduler in real time until ctx is done. Closures
// submitted through Do run on the same goroutine, between task passes.
func (s *Scheduler) Run(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	s.log.Info("Scheduler started", "resolution", s.resolution.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue()
		case fn := <-s.inbox:
			s.call("inbox", fn)
		}
	}
}

// Running reports whether Run is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Do runs fn on the scheduler goroutine and waits for it to finish. When
// Run is not active, fn runs on the caller's goroutine.
func (s *Scheduler) Do(ctx context.Context, fn func()) error {
	if !s.running.Load() {
		s.call("inline", fn)
		return nil
	}
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case s.inbox <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
