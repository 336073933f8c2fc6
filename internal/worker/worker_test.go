package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/trader-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/trader-engine/pkg/queue"
)

type recordingExecutor struct {
	mu   sync.Mutex
	ran  []string
	errs []error
}

func (e *recordingExecutor) Execute(_ context.Context, cmd *queuePkg.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ran = append(e.ran, cmd.Text)
	if len(e.errs) > 0 {
		err := e.errs[0]
		e.errs = e.errs[1:]
		return err
	}
	return nil
}

func setup(t *testing.T, exec Executor) (*Worker, *queue.CommandQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := queue.NewClient(mr.Addr(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	q := queue.NewCommandQueue(client)
	w := New(q, exec, client.GetRedisClient(), log, "test-worker")
	return w, q, mr
}

func TestWorkerExecutesCommand(t *testing.T) {
	exec := &recordingExecutor{}
	w, q, _ := setup(t, exec)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queuePkg.NewCommand("eco give p1 15.00", "api", time.Now())))
	took, err := w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, took)
	assert.Equal(t, []string{"eco give p1 15.00"}, exec.ran)

	took, err = w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, took)
}

func TestWorkerSkipsClaimedCommand(t *testing.T) {
	exec := &recordingExecutor{}
	w, q, mr := setup(t, exec)
	ctx := context.Background()

	cmd := queuePkg.NewCommand("say hi", "api", time.Now())
	require.NoError(t, mr.Set(commandLockKey(cmd.RequestID), "other-worker"))
	require.NoError(t, q.Enqueue(ctx, cmd))

	_, err := w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, exec.ran)
}

func TestWorkerRequeuesThenDeadLetters(t *testing.T) {
	exec := &recordingExecutor{}
	w, q, _ := setup(t, exec)
	w.maxAttempts = 2
	ctx := context.Background()
	exec.errs = []error{errors.New("host down"), errors.New("host down")}

	require.NoError(t, q.Enqueue(ctx, queuePkg.NewCommand("say hi", "api", time.Now())))

	_, err := w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)
	depth, _ := q.Depth(ctx)
	assert.Equal(t, 1, depth, "first failure re-queues")

	_, err = w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)
	depth, _ = q.Depth(ctx)
	dead, _ := q.DeadLetterDepth(ctx)
	assert.Equal(t, 0, depth)
	assert.Equal(t, 1, dead)
	assert.Len(t, exec.ran, 2)
}

func TestWorkerDeadLettersPermanentFailure(t *testing.T) {
	exec := &recordingExecutor{errs: []error{ErrPermanent}}
	w, q, _ := setup(t, exec)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queuePkg.NewCommand("say hi", "api", time.Now())))
	_, err := w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)

	dead, _ := q.DeadLetterDepth(ctx)
	assert.Equal(t, 1, dead)
}

func TestWorkerDeadLettersInvalidCommand(t *testing.T) {
	exec := &recordingExecutor{}
	w, q, _ := setup(t, exec)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &queuePkg.Command{RequestID: "not-a-uuid", Text: "say hi"}))
	_, err := w.ProcessNext(100 * time.Millisecond)
	require.NoError(t, err)

	dead, _ := q.DeadLetterDepth(ctx)
	assert.Equal(t, 1, dead)
	assert.Empty(t, exec.ran)
}

func TestWebhookExecutor(t *testing.T) {
	var mu sync.Mutex
	var got webhookRequest
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	exec := NewWebhookExecutor(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	cmd := queuePkg.NewCommand("eco give p1 15.00", "api", time.Now())

	require.NoError(t, exec.Execute(context.Background(), cmd))
	mu.Lock()
	assert.Equal(t, "eco give p1 15.00", got.Command)
	assert.Equal(t, cmd.RequestID, got.RequestID)
	mu.Unlock()

	status.Store(http.StatusBadRequest)
	err := exec.Execute(context.Background(), cmd)
	assert.ErrorIs(t, err, ErrPermanent)

	status.Store(http.StatusServiceUnavailable)
	err = exec.Execute(context.Background(), cmd)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)
}
