package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/trader-engine/internal/logger"
	"github.com/jwebster45206/trader-engine/internal/simulation"
	"github.com/jwebster45206/trader-engine/pkg/catalog"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/item"
	"github.com/jwebster45206/trader-engine/pkg/trade"
)

type OpenRequest struct {
	NPCID string `json:"npc_id"`
}

type UnstageRequest struct {
	Index int `json:"index"`
}

type SettleRequest struct {
	Close bool `json:"close"`
}

type FilterRequest struct {
	Category string `json:"category"`
}

type ViewRequest struct {
	Active bool `json:"active"`
}

type FilterResponse struct {
	Filter string `json:"filter"`
}

// SessionHandler drives one player's sell session
type SessionHandler struct {
	sim    *simulation.Simulation
	logger *slog.Logger
}

func NewSessionHandler(sim *simulation.Simulation, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sim: sim, logger: logger}
}

// ServeHTTP routes:
// GET    /v1/sessions/compare?items=A,B   - compare prices across NPCs
// GET    /v1/sessions/{player}            - session view
// POST   /v1/sessions/{player}            - open a session with an NPC
// DELETE /v1/sessions/{player}            - close, returning staged items
// POST   /v1/sessions/{player}/stage      - stage an item stake
// POST   /v1/sessions/{player}/unstage    - return the item in a slot
// GET    /v1/sessions/{player}/total      - price the staged items
// POST   /v1/sessions/{player}/settle     - sell (may ask for confirmation)
// POST   /v1/sessions/{player}/filter     - select a category
// POST   /v1/sessions/{player}/sell-category - sell every held item in the filter
// POST   /v1/sessions/{player}/view       - mark the view active or inactive
// GET    /v1/sessions/{player}/prices     - the NPC's prices for the filter
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/sessions")
	if len(parts) == 0 || len(parts) > 2 {
		writeMessage(w, h.logger, http.StatusNotFound, "Expected /v1/sessions/{player}[/action]")
		return
	}
	if len(parts) == 1 && parts[0] == "compare" && r.Method == http.MethodGet {
		h.handleCompare(w, r)
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
		view, ok := h.sim.Engine.Session(player)
		if !ok {
			writeError(w, log, apperrors.New(apperrors.CodeSessionNotFound, "no open session"))
			return
		}
		writeJSON(w, log, http.StatusOK, view)
	case action == "" && r.Method == http.MethodPost:
		h.handleOpen(w, r, log, player)
	case action == "" && r.Method == http.MethodDelete:
		h.handleClose(w, r, log, player)
	case action == "stage" && r.Method == http.MethodPost:
		h.handleStage(w, r, log, player)
	case action == "unstage" && r.Method == http.MethodPost:
		h.handleUnstage(w, r, log, player)
	case action == "total" && r.Method == http.MethodGet:
		h.quoteResponse(w, r, log, func() (trade.Quote, error) { return h.sim.Engine.ComputeTotal(player) })
	case action == "settle" && r.Method == http.MethodPost:
		h.handleSettle(w, r, log, player)
	case action == "filter" && r.Method == http.MethodPost:
		h.handleFilter(w, r, log, player)
	case action == "sell-category" && r.Method == http.MethodPost:
		h.resultResponse(w, r, log, func() (trade.Result, error) { return h.sim.Engine.SellByCategory(player) })
	case action == "view" && r.Method == http.MethodPost:
		h.handleView(w, r, log, player)
	case action == "prices" && r.Method == http.MethodGet:
		var lines []catalog.Line
		err := onLoop(r, h.sim.Scheduler, func() error {
			var err error
			lines, err = h.sim.Engine.PriceInfo(player)
			return err
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, log, http.StatusOK, lines)
	default:
		writeMessage(w, log, http.StatusNotFound, "Unknown session route")
	}
}

func (h *SessionHandler) handleOpen(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var req OpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	var view trade.SessionView
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		view, err = h.sim.Engine.Open(player, req.NPCID)
		return err
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusCreated, view)
}

func (h *SessionHandler) handleClose(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	if err := onLoop(r, h.sim.Scheduler, func() error { return h.sim.Engine.Close(player) }); err != nil {
		writeError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleStage(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var stake item.Stake
	if err := decodeJSON(r, &stake); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	h.quoteResponse(w, r, log, func() (trade.Quote, error) { return h.sim.Engine.Stage(player, stake) })
}

func (h *SessionHandler) handleUnstage(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var req UnstageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	h.quoteResponse(w, r, log, func() (trade.Quote, error) { return h.sim.Engine.Unstage(player, req.Index) })
}

func (h *SessionHandler) handleSettle(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var req SettleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, log, http.StatusBadRequest, err.Error())
			return
		}
	}
	h.resultResponse(w, r, log, func() (trade.Result, error) { return h.sim.Engine.AttemptSettle(player, req.Close) })
}

func (h *SessionHandler) handleFilter(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var req FilterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	var filter string
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		filter, err = h.sim.Engine.SetFilter(player, req.Category)
		return err
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusOK, FilterResponse{Filter: filter})
}

func (h *SessionHandler) handleView(w http.ResponseWriter, r *http.Request, log *slog.Logger, player uuid.UUID) {
	var req ViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, log, http.StatusBadRequest, err.Error())
		return
	}
	if err := onLoop(r, h.sim.Scheduler, func() error { return h.sim.Engine.SetViewActive(player, req.Active) }); err != nil {
		writeError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var items []string
	if raw := r.URL.Query().Get("items"); raw != "" {
		for _, it := range strings.Split(raw, ",") {
			if it = strings.TrimSpace(it); it != "" {
				items = append(items, it)
			}
		}
	}
	var out []catalog.Comparison
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		out, err = h.sim.Engine.ComparePrices(items)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *SessionHandler) quoteResponse(w http.ResponseWriter, r *http.Request, log *slog.Logger, fn func() (trade.Quote, error)) {
	var q trade.Quote
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		q, err = fn()
		return err
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusOK, q)
}

func (h *SessionHandler) resultResponse(w http.ResponseWriter, r *http.Request, log *slog.Logger, fn func() (trade.Result, error)) {
	var res trade.Result
	err := onLoop(r, h.sim.Scheduler, func() error {
		var err error
		res, err = fn()
		return err
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	log.Debug("Settle attempt", "outcome", res.Outcome.String(), "total", res.Quote.Total.String())
	writeJSON(w, log, http.StatusOK, res)
}
