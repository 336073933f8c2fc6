package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/trader-engine/internal/logger"
	"github.com/jwebster45206/trader-engine/internal/simulation"
	"github.com/jwebster45206/trader-engine/pkg/trade"
)

// InteractRequest is a player using an NPC, named either by the identity
// token of the world object or by NPC id
type InteractRequest struct {
	Player uuid.UUID `json:"player"`
	Token  uuid.UUID `json:"token,omitempty"`
	NPCID  string    `json:"npc_id,omitempty"`
}

type InteractHandler struct {
	sim    *simulation.Simulation
	logger *slog.Logger
}

func NewInteractHandler(sim *simulation.Simulation, logger *slog.Logger) *InteractHandler {
	return &InteractHandler{sim: sim, logger: logger}
}

// ServeHTTP handles POST /v1/interact
func (h *InteractHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req InteractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.Player == uuid.Nil {
		writeMessage(w, h.logger, http.StatusBadRequest, "player is required")
		return
	}
	if req.Token == uuid.Nil && req.NPCID == "" {
		writeMessage(w, h.logger, http.StatusBadRequest, "token or npc_id is required")
		return
	}

	log := logger.WithPlayer(h.logger, req.Player.String())
	var out trade.Interaction
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		if req.Token != uuid.Nil {
			out, err = h.sim.Engine.Interact(req.Player, req.Token)
		} else {
			out, err = h.sim.Engine.InteractWith(req.Player, req.NPCID)
		}
		return err
	})
	if err != nil {
		log.Debug("Interaction refused", "error", err)
		writeError(w, h.logger, err)
		return
	}
	log.Debug("Interaction", "npc_id", out.NPCID, "session_opened", out.Session != nil)
	writeJSON(w, h.logger, http.StatusOK, out)
}
