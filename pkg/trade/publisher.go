package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PreviewEvent carries a live quote for a player's open session.
type PreviewEvent struct {
	Player uuid.UUID `json:"player"`
	NPCID  string    `json:"npc_id"`
	Quote  Quote     `json:"quote"`
	At     time.Time `json:"at"`
}

// SaleEvent reports a settled sale.
type SaleEvent struct {
	Player   uuid.UUID       `json:"player"`
	NPCID    string          `json:"npc_id"`
	NPCName  string          `json:"npc_name"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Bulk     bool            `json:"bulk"`
	Category string          `json:"category,omitempty"`
	At       time.Time       `json:"at"`
}

// Publisher receives engine events. Implementations must not block.
type Publisher interface {
	PublishPreview(PreviewEvent)
	PublishSale(SaleEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishPreview(PreviewEvent) {}
func (NopPublisher) PublishSale(SaleEvent)       {}
