package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/scheduler"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// loopTimeout bounds how long a request waits for the simulation loop
const loopTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, log *slog.Logger, status int, msg string) {
	writeJSON(w, log, status, ErrorResponse{Error: msg})
}

// writeError maps domain errors to their HTTP status; anything else is a 500
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	if appErr, ok := apperrors.As(err); ok {
		writeJSON(w, log, appErr.Code.HTTPStatus(), ErrorResponse{
			Error:    appErr.Message,
			Code:     string(appErr.Code),
			Kind:     appErr.Code.Kind().String(),
			Metadata: appErr.Metadata,
		})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("Simulation loop did not answer in time", "error", err)
		writeMessage(w, log, http.StatusServiceUnavailable, "Simulation busy, try again")
		return
	}
	log.Error("Request failed", "error", err)
	writeMessage(w, log, http.StatusInternalServerError, "Internal server error")
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// onLoop runs fn on the simulation loop and returns its error
func onLoop(r *http.Request, sched *scheduler.Scheduler, fn func() error) error {
	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()
	var err error
	if doErr := sched.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

// pathParts splits the path after prefix into its segments
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parsePlayer(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid player id %q", s)
	}
	return id, nil
}
