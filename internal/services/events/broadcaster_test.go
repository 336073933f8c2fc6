package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/trade"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func receive(t *testing.T, ps *redis.PubSub) (string, Event) {
	t.Helper()
	select {
	case msg := <-ps.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return msg.Channel, ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return "", Event{}
}

func TestBroadcasterSaleReachesPlayerAndGlobal(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()
	player := uuid.New()

	ps := Subscribe(ctx, rdb, player)
	defer ps.Close()
	_, err := ps.Receive(ctx) // subscription confirmations
	require.NoError(t, err)
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.PublishSale(trade.SaleEvent{
		Player: player,
		NPCID:  "bob",
		Total:  decimal.NewFromInt(15),
		Count:  3,
		At:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, 2, b.Flush(ctx))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ch, ev := receive(t, ps)
		seen[ch] = true
		assert.Equal(t, EventTypeSaleCompleted, ev.Type)
		assert.Equal(t, "bob", ev.NPCID)

		var sale trade.SaleEvent
		require.NoError(t, json.Unmarshal(ev.Data, &sale))
		assert.True(t, sale.Total.Equal(decimal.NewFromInt(15)))
	}
	assert.True(t, seen[GlobalChannel])
	assert.True(t, seen[PlayerChannel(player)])
}

func TestBroadcasterNPCStateAndReset(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()

	ps := Subscribe(ctx, rdb, uuid.Nil)
	defer ps.Close()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	b.PublishNPCState(npc.Event{NPCID: "bob", State: npc.Present, Enabled: true, At: now})
	b.PublishDailyReset("2025-06-02", now)
	b.Flush(ctx)

	_, ev := receive(t, ps)
	assert.Equal(t, EventTypeNPCState, ev.Type)
	assert.Equal(t, "bob", ev.NPCID)

	_, ev = receive(t, ps)
	assert.Equal(t, EventTypeDailyReset, ev.Type)
	assert.JSONEq(t, `{"date":"2025-06-02"}`, string(ev.Data))
}

func TestBroadcasterWithoutRedisOnlyLogs(t *testing.T) {
	b := NewBroadcaster(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.PublishPreview(trade.PreviewEvent{Player: uuid.New(), NPCID: "bob"})
	assert.Equal(t, 1, b.Flush(context.Background()))
}
