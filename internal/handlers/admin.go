package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/trader-engine/internal/config"
	"github.com/jwebster45206/trader-engine/internal/simulation"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
)

type ReloadResponse struct {
	Path     string   `json:"path"`
	NPCs     int      `json:"npcs"`
	Warnings []string `json:"warnings,omitempty"`
}

type ResetResponse struct {
	Date     string `json:"date"`
	Accounts int    `json:"accounts_rolled"`
}

// AdminHandler serves operator commands
type AdminHandler struct {
	sim        *simulation.Simulation
	configPath string
	logger     *slog.Logger
}

func NewAdminHandler(sim *simulation.Simulation, configPath string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{sim: sim, configPath: configPath, logger: logger}
}

// ServeHTTP routes:
// POST /v1/admin/reload - re-read the trader config
// POST /v1/admin/reset  - force the daily reset
// POST /v1/admin/save   - persist now
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}
	parts := pathParts(r.URL.Path, "/v1/admin")
	if len(parts) != 1 {
		writeMessage(w, h.logger, http.StatusNotFound, "Expected /v1/admin/{reload|reset|save}")
		return
	}

	switch parts[0] {
	case "reload":
		h.handleReload(w, r)
	case "reset":
		var rolled int
		if err := onLoop(r, h.sim.Scheduler, func() error { rolled = h.sim.ForceReset(); return nil }); err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.logger.Info("Daily reset forced", "accounts_rolled", rolled)
		writeJSON(w, h.logger, http.StatusOK, ResetResponse{Date: h.sim.Ledger.LastReset(), Accounts: rolled})
	case "save":
		start := time.Now()
		if err := h.sim.SaveNow(r.Context()); err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.logger.Info("State saved", "duration_ms", time.Since(start).Milliseconds())
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMessage(w, h.logger, http.StatusNotFound, "Unknown admin command")
	}
}

func (h *AdminHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadTrader(h.configPath)
	if err != nil {
		h.logger.Warn("Trader config reload rejected", "path", h.configPath, "error", err)
		writeError(w, h.logger, apperrors.New(apperrors.CodeInvalidConfig, err.Error()))
		return
	}
	if err := onLoop(r, h.sim.Scheduler, func() error { h.sim.Reload(cfg); return nil }); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReloadResponse{
		Path:     h.configPath,
		NPCs:     len(h.sim.Registry.List()),
		Warnings: cfg.Warnings,
	})
}
