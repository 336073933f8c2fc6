package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwebster45206/trader-engine/internal/logger"
	"github.com/jwebster45206/trader-engine/internal/simulation"
	"github.com/jwebster45206/trader-engine/pkg/catalog"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/item"
	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

type DailyRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PresenceRequest struct {
	Location world.Location `json:"location"`
}

type PlayerResponse struct {
	ledger.Stats
	Remaining decimal.Decimal `json:"remaining_limit"`
	Online    bool            `json:"online"`
	Holdings  []item.Stake    `json:"holdings,omitempty"`
}

// PlayerHandler exposes player accounts and, for the in-process world,
// player presence and holdings.
type PlayerHandler struct {
	sim    *simulation.Simulation
	logger *slog.Logger
}

func NewPlayerHandler(sim *simulation.Simulation, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{sim: sim, logger: logger}
}

// ServeHTTP routes:
// GET  /v1/players            - every account
// GET  /v1/players/{id}       - one account
// POST /v1/players/{id}/reset - clear the account
// PUT  /v1/players/{id}/daily - set today's sold amount
// POST /v1/players/{id}/join  - place the player in the world
// POST /v1/players/{id}/move  - move the player
// POST /v1/players/{id}/leave - disconnect, closing any session
// GET  /v1/players/{id}/items - holdings
// POST /v1/players/{id}/items - give the player an item
func (h *PlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/players")
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, h.sim.Ledger.AllStats())
		return
	}
	if len(parts) > 2 {
		writeMessage(w, h.logger, http.StatusNotFound, "Expected /v1/players/{id}[/action]")
		return
	}

	player, err := parsePlayer(parts[0])
	if err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	log := logger.WithPlayer(h.logger, player.String())

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, log, http.StatusOK, h.describe(player))
	case action == "reset" && r.Method == http.MethodPost:
		h.sim.Ledger.ResetPlayer(player)
		log.Info("Player account reset")
		writeJSON(w, log, http.StatusOK, h.describe(player))
	case action == "daily" && r.Method == http.MethodPut:
		h.handleDaily(w, r, log, player)
	case (action == "join" || action == "move") && r.Method == http.MethodPost:
		h.handlePresence(w, r, log, player, action)
	case action == "leave" && r.Method == http.MethodPost:
		err := onLoop(r, h.sim.Scheduler, func() error {
			h.sim.Engine.Disconnect(player)
			h.sim.World.Leave(player)
			return nil
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("Player left")
		w.WriteHeader(http.StatusNoContent)
	case action == "items" && r.Method == http.MethodGet:
		writeJSON(w, log, http.StatusOK, h.sim.World.Holdings(player))
	case action == "items" && r.Method == http.MethodPost:
		h.handleGive(w, r, log, player)
	default:
		writeMessage(w, log, http.StatusNotFound, "Unknown player route")
	}
}

func (h *PlayerHandler) describe(player uuid.UUID) PlayerResponse {
	return PlayerResponse{
		Stats:     h.sim.Ledger.Stats(player),
		Remaining: h.sim.Ledger.RemainingLimit(player, h.sim.Engine.Settings().DailyLimit),
		Online:    h.sim.World.Online(player),
		Holdings:  h.sim.World.Holdings(player),
	}
}

func (h *PlayerHandler) handleDaily(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var req DailyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount.IsNegative() {
		writeMessage(w, log, http.StatusBadRequest, "amount must not be negative")
		return
	}
	h.sim.Ledger.SetDailySold(player, req.Amount)
	log.Info("Daily sold set", "amount", req.Amount.String())
	writeJSON(w, log, http.StatusOK, h.describe(player))
}

func (h *PlayerHandler) handlePresence(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID, action string) {
	var req PresenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	err := onLoop(r, h.sim.Scheduler, func() error {
		if action == "join" {
			h.sim.World.Join(player, req.Location)
			return nil
		}
		if !h.sim.World.Online(player) {
			return apperrors.New(apperrors.CodePlayerOffline, "player is not online")
		}
		h.sim.World.Move(player, req.Location)
		return nil
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	log.Debug("Player presence", "action", action, "world", req.Location.World)
	writeJSON(w, log, http.StatusOK, h.describe(player))
}

func (h *PlayerHandler) handleGive(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var stake item.Stake
	if err := decodeJSON(r, &stake); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	stake.Type = catalog.NormalizeItem(stake.Type)
	if !stake.Valid() {
		writeError(w, log, apperrors.New(apperrors.CodeInvalidItem, "item type and a positive quantity are required"))
		return
	}
	var added bool
	err := onLoop(r, h.sim.Scheduler, func() error {
		if !h.sim.World.Online(player) {
			return apperrors.New(apperrors.CodePlayerOffline, "player is not online")
		}
		added = h.sim.World.AddItem(player, stake)
		return nil
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	if !added {
		writeError(w, log, apperrors.New(apperrors.CodeSlotsFull, "no free holding slot"))
		return
	}
	writeJSON(w, log, http.StatusOK, h.sim.World.Holdings(player))
}
