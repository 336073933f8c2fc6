package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/trader-engine/internal/services/async"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/trade"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionPreview EventType = "session.preview"
	EventTypeSaleCompleted  EventType = "sale.completed"
	EventTypeNPCState       EventType = "npc.state"
	EventTypeDailyReset     EventType = "ledger.daily_reset"
)

// GlobalChannel carries events every subscriber sees.
const GlobalChannel = "trader-events"

// PlayerChannel returns the channel for one player's events.
func PlayerChannel(player uuid.UUID) string {
	return fmt.Sprintf("trader-events:player:%s", player.String())
}

// Event represents a generic event structure
type Event struct {
	Type   EventType       `json:"type"`
	Player string          `json:"player,omitempty"`
	NPCID  string          `json:"npc_id,omitempty"`
	At     time.Time       `json:"at"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	channel string
	event   Event
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution.
// Publishing never blocks the caller; events are buffered and sent from a
// background goroutine. A Broadcaster without a Redis client only logs.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
	pipe        *async.Pipe[outgoing]
}

var _ trade.Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
	b.pipe = async.NewPipe("events", 512, b.send, logger)
	return b
}

// Start begins sending buffered events.
func (b *Broadcaster) Start(ctx context.Context) { b.pipe.Start(ctx) }

// Stop sends what is buffered, waiting at most timeout.
func (b *Broadcaster) Stop(timeout time.Duration) { b.pipe.Stop(timeout) }

// Flush sends everything buffered on the caller's goroutine.
func (b *Broadcaster) Flush(ctx context.Context) int { return b.pipe.Drain(ctx) }

// PublishPreview publishes a session.preview event to the player's channel
func (b *Broadcaster) PublishPreview(ev trade.PreviewEvent) {
	b.enqueue(PlayerChannel(ev.Player), EventTypeSessionPreview, ev.Player.String(), ev.NPCID, ev.At, ev.Quote)
}

// PublishSale publishes a sale.completed event to the player's channel and
// the global channel
func (b *Broadcaster) PublishSale(ev trade.SaleEvent) {
	b.enqueue(PlayerChannel(ev.Player), EventTypeSaleCompleted, ev.Player.String(), ev.NPCID, ev.At, ev)
	b.enqueue(GlobalChannel, EventTypeSaleCompleted, ev.Player.String(), ev.NPCID, ev.At, ev)
}

// PublishNPCState publishes an npc.state event
func (b *Broadcaster) PublishNPCState(ev npc.Event) {
	b.enqueue(GlobalChannel, EventTypeNPCState, "", ev.NPCID, ev.At, ev)
}

// PublishDailyReset publishes a ledger.daily_reset event
func (b *Broadcaster) PublishDailyReset(date string, at time.Time) {
	b.enqueue(GlobalChannel, EventTypeDailyReset, "", "", at, map[string]string{"date": date})
}

func (b *Broadcaster) enqueue(channel string, typ EventType, player, npcID string, at time.Time, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", typ)
		return
	}
	b.pipe.Send(outgoing{
		channel: channel,
		event:   Event{Type: typ, Player: player, NPCID: npcID, At: at, Data: data},
	})
}

func (b *Broadcaster) send(ctx context.Context, out outgoing) {
	if err := b.publish(ctx, out.channel, out.event); err != nil {
		b.logger.Warn("Event not delivered", "channel", out.channel, "error", err)
	}
}

// publish publishes an event to a channel
func (b *Broadcaster) publish(ctx context.Context, channel string, event Event) error {
	if b.redisClient == nil {
		b.logger.Debug("Event", "channel", channel, "event_type", event.Type, "npc_id", event.NPCID)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"npc_id", event.NPCID,
	)

	return nil
}

// Subscribe subscribes to the global channel and, when player is not nil,
// that player's channel.
func Subscribe(ctx context.Context, rdb *redis.Client, player uuid.UUID) *redis.PubSub {
	if player == uuid.Nil {
		return rdb.Subscribe(ctx, GlobalChannel)
	}
	return rdb.Subscribe(ctx, GlobalChannel, PlayerChannel(player))
}
