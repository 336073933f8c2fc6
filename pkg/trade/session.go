package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwebster45206/trader-engine/pkg/item"
	"github.com/jwebster45206/trader-engine/pkg/scheduler"
)

// Phase is a sell session's state.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseStaging
	PhasePendingConfirm
	PhaseSettled
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseStaging:
		return "staging"
	case PhasePendingConfirm:
		return "pending_confirm"
	case PhaseSettled:
		return "settled"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// QuoteLine is the priced form of one staged stake.
type QuoteLine struct {
	Stake     item.Stake      `json:"stake"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Modifier  decimal.Decimal `json:"modifier"`
	Value     decimal.Decimal `json:"value"`
}

// Quote is a computed total over a set of stakes. Stakes the NPC does not
// buy are listed in Excluded and contribute nothing.
type Quote struct {
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Lines    []QuoteLine     `json:"lines"`
	Excluded []item.Stake    `json:"excluded,omitempty"`
}

// Outcome is the result of a settle attempt that did not fail.
type Outcome int

const (
	OutcomeSettled Outcome = iota
	OutcomeConfirmationRequired
)

func (o Outcome) String() string {
	if o == OutcomeConfirmationRequired {
		return "confirmation_required"
	}
	return "settled"
}

// MarshalText renders the outcome name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result reports a settle or bulk-sell attempt.
type Result struct {
	Outcome  Outcome   `json:"outcome"`
	Quote    Quote     `json:"quote"`
	Message  string    `json:"message"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Session is one player's open trade with one NPC. Owned by the Engine.
type Session struct {
	Player uuid.UUID
	NPCID  string
	Filter string

	phase      Phase
	staged     []item.Stake
	deadline   time.Time
	confirm    *scheduler.Task
	preview    *scheduler.Task
	idle       *scheduler.Task
	viewActive bool
	last       Quote
	opened     time.Time
	lastActive time.Time
}

// SessionView is a read-only copy of a session.
type SessionView struct {
	Player          uuid.UUID    `json:"player"`
	NPCID           string       `json:"npc_id"`
	Filter          string       `json:"filter"`
	Phase           Phase        `json:"phase"`
	Staged          []item.Stake `json:"staged"`
	ConfirmDeadline time.Time    `json:"confirm_deadline,omitempty"`
	Preview         Quote        `json:"preview"`
	ViewActive      bool         `json:"view_active"`
	Opened          time.Time    `json:"opened"`
	LastActive      time.Time    `json:"last_active"`
}

func (s *Session) view() SessionView {
	return SessionView{
		Player:          s.Player,
		NPCID:           s.NPCID,
		Filter:          s.Filter,
		Phase:           s.phase,
		Staged:          append([]item.Stake(nil), s.staged...),
		ConfirmDeadline: s.deadline,
		Preview:         s.last,
		ViewActive:      s.viewActive,
		Opened:          s.opened,
		LastActive:      s.lastActive,
	}
}

func (s *Session) cancelTasks() {
	s.confirm.Cancel()
	s.preview.Cancel()
	s.idle.Cancel()
	s.confirm, s.preview, s.idle = nil, nil, nil
}

// clearConfirm drops any pending confirmation and returns to Staging.
func (s *Session) clearConfirm() {
	s.confirm.Cancel()
	s.confirm = nil
	s.deadline = time.Time{}
	if s.phase == PhasePendingConfirm {
		s.phase = PhaseStaging
	}
}
