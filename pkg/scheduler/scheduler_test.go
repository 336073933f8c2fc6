package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/trader-engine/pkg/clock"
)

var epoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestScheduler() (*Scheduler, *clock.Manual) {
	clk := clock.NewManual(epoch)
	return New(clk, slog.New(slog.NewTextHandler(io.Discard, nil))), clk
}

func TestEveryRunsOnInterval(t *testing.T) {
	s, _ := newTestScheduler()
	var times []time.Duration
	s.Every("tick", 500*time.Millisecond, func() {
		times = append(times, s.Now().Sub(epoch))
	})

	s.Advance(2 * time.Second)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		1500 * time.Millisecond,
		2 * time.Second,
	}, times)
}

func TestAfterRunsOnce(t *testing.T) {
	s, _ := newTestScheduler()
	var n int
	task := s.After("once", 10*time.Second, func() { n++ })

	s.Advance(9 * time.Second)
	assert.Equal(t, 0, n)
	s.Advance(time.Second)
	assert.Equal(t, 1, n)
	s.Advance(time.Minute)
	assert.Equal(t, 1, n)
	assert.False(t, task.Repeating())
	assert.Equal(t, 0, s.Pending())
}

func TestOrderByDueThenCreation(t *testing.T) {
	s, _ := newTestScheduler()
	var order []string
	s.After("b", 2*time.Second, func() { order = append(order, "b") })
	s.After("a1", time.Second, func() { order = append(order, "a1") })
	s.After("a2", time.Second, func() { order = append(order, "a2") })

	s.Advance(3 * time.Second)
	assert.Equal(t, []string{"a1", "a2", "b"}, order)
}

func TestCancel(t *testing.T) {
	s, _ := newTestScheduler()
	var n int
	task := s.Every("tick", time.Second, func() { n++ })

	s.Advance(3 * time.Second)
	require.Equal(t, 3, n)

	task.Cancel()
	assert.True(t, task.Cancelled())
	s.Advance(5 * time.Second)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, s.Pending())
}

func TestSelfCancelFromInsideTask(t *testing.T) {
	s, _ := newTestScheduler()
	var n int
	var task *Task
	task = s.Every("self", time.Second, func() {
		n++
		if n == 2 {
			task.Cancel()
		}
	})

	s.Advance(10 * time.Second)
	assert.Equal(t, 2, n)
}

func TestMissedRunsCoalesce(t *testing.T) {
	s, clk := newTestScheduler()
	var n int
	s.Every("tick", time.Second, func() { n++ })

	// jump without stepping, as a paused process would
	clk.Advance(10 * time.Second)
	ran := s.RunDue()
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, n)

	s.Advance(time.Second)
	assert.Equal(t, 2, n)
}

func TestPanicIsRecovered(t *testing.T) {
	s, _ := newTestScheduler()
	var after int
	s.After("boom", time.Second, func() { panic("boom") })
	s.After("next", time.Second, func() { after++ })

	assert.NotPanics(t, func() { s.Advance(time.Second) })
	assert.Equal(t, 1, after)
}

func TestTaskScheduledFromTaskRuns(t *testing.T) {
	s, _ := newTestScheduler()
	var fired time.Duration
	s.After("outer", time.Second, func() {
		s.After("inner", 2*time.Second, func() { fired = s.Now().Sub(epoch) })
	})

	s.Advance(5 * time.Second)
	assert.Equal(t, 3*time.Second, fired)
}

func TestAdvanceRequiresManualClock(t *testing.T) {
	s := New(clock.Real{}, nil)
	assert.Panics(t, func() { s.Advance(time.Second) })
}

func TestDoInlineWhenNotRunning(t *testing.T) {
	s, _ := newTestScheduler()
	var ran bool
	require.NoError(t, s.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestRunDrainsInboxAndTasks(t *testing.T) {
	s := New(clock.Real{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.SetResolution(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, s.Running, time.Second, time.Millisecond)

	var ticks atomic.Int32
	s.Every("tick", 10*time.Millisecond, func() { ticks.Add(1) })

	var inLoop bool
	require.NoError(t, s.Do(ctx, func() { inLoop = s.Running() }))
	assert.True(t, inLoop)

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
