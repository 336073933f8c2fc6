package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/trader-engine/internal/services/events"
)

const keepaliveInterval = 30 * time.Second

// EventsHandler streams trader events as Server-Sent Events
type EventsHandler struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewEventsHandler(redisClient *redis.Client, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		redisClient: redisClient,
		logger:      logger,
	}
}

// ServeHTTP routes:
// GET /v1/events           - global events
// GET /v1/events/{player}  - global events plus one player's previews and sales
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	if h.redisClient == nil {
		writeMessage(w, h.logger, http.StatusServiceUnavailable, "Event stream requires the redis backend")
		return
	}

	parts := pathParts(r.URL.Path, "/v1/events")
	player := uuid.Nil
	switch len(parts) {
	case 0:
	case 1:
		id, err := parsePlayer(parts[0])
		if err != nil {
			writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		player = id
	default:
		writeMessage(w, h.logger, http.StatusNotFound, "Expected /v1/events[/{player}]")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, h.logger, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	h.logger.Info("SSE connection established", "player", player.String(), "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	pubsub := events.Subscribe(r.Context(), h.redisClient, player)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	msgChan := pubsub.Channel()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	h.sendSSE(w, flusher, "connected", map[string]string{"player": player.String()})

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "player", player.String())
			return
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			h.sendSSE(w, flusher, string(event.Type), event)
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err)
		return
	}
	flusher.Flush()
}
