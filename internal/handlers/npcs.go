package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/trader-engine/internal/simulation"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/npc"
)

// NPCHandler manages trader NPCs
type NPCHandler struct {
	sim    *simulation.Simulation
	logger *slog.Logger
}

func NewNPCHandler(sim *simulation.Simulation, logger *slog.Logger) *NPCHandler {
	return &NPCHandler{sim: sim, logger: logger}
}

type npcDetail struct {
	npc.Info
	Display []string `json:"display,omitempty"`
}

type toggleResponse struct {
	NPCID   string `json:"npc_id"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

// ServeHTTP routes:
// GET    /v1/npcs             - list NPCs
// POST   /v1/npcs             - create an NPC
// GET    /v1/npcs/{id}        - one NPC with its display lines
// DELETE /v1/npcs/{id}        - remove an NPC
// POST   /v1/npcs/{id}/toggle - enable or disable
// POST   /v1/npcs/{id}/spawn  - respawn now
func (h *NPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/npcs")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, h.logger, http.StatusOK, h.sim.Registry.List())
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleRemove(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "toggle" && r.Method == http.MethodPost:
		h.handleToggle(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "spawn" && r.Method == http.MethodPost:
		h.handleSpawn(w, r, parts[0])
	default:
		writeMessage(w, h.logger, http.StatusNotFound, "Unknown NPC route")
	}
}

func (h *NPCHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec npc.Record
	if err := decodeJSON(r, &rec); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	rec.DailyInteractions = 0

	var info npc.Info
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		info, err = h.sim.Registry.Create(rec)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("NPC created", "npc_id", info.ID, "state", info.State.String())
	writeJSON(w, h.logger, http.StatusCreated, info)
}

func (h *NPCHandler) handleGet(w http.ResponseWriter, id string) {
	info, ok := h.sim.Registry.Get(id)
	if !ok {
		writeMessage(w, h.logger, http.StatusNotFound, "NPC not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, npcDetail{Info: info, Display: h.sim.Registry.DisplayText(id)})
}

func (h *NPCHandler) handleRemove(w http.ResponseWriter, r *http.Request, id string) {
	err := onLoop(r, h.sim.Scheduler, func() error { return h.sim.Registry.Remove(id) })
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("NPC removed", "npc_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *NPCHandler) handleToggle(w http.ResponseWriter, r *http.Request, id string) {
	var enabled bool
	var spawnErr error
	err := onLoop(r, h.sim.Scheduler, func() error {
		if _, ok := h.sim.Registry.Get(id); !ok {
			return apperrors.New(apperrors.CodeNPCNotFound, "npc "+id+" not found")
		}
		enabled, spawnErr = h.sim.Registry.Toggle(id)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := toggleResponse{NPCID: id, Enabled: enabled}
	if spawnErr != nil {
		// the toggle stands; the validity sweep retries the spawn
		resp.Error = spawnErr.Error()
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *NPCHandler) handleSpawn(w http.ResponseWriter, r *http.Request, id string) {
	err := onLoop(r, h.sim.Scheduler, func() error { return h.sim.Registry.Spawn(id) })
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	info, _ := h.sim.Registry.Get(id)
	writeJSON(w, h.logger, http.StatusOK, info)
}
