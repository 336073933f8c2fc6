package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/trader-engine/pkg/queue"
)

// Executor runs one side-effect command against the host world.
type Executor interface {
	Execute(ctx context.Context, cmd *queue.Command) error
}

// ErrPermanent marks failures that retrying will not fix.
var ErrPermanent = errors.New("permanent failure")

// LogExecutor only logs commands. It is used when no host endpoint is
// configured.
type LogExecutor struct {
	Logger *slog.Logger
}

func (e LogExecutor) Execute(_ context.Context, cmd *queue.Command) error {
	e.Logger.Info("Executing command", "request_id", cmd.RequestID, "command", cmd.Text, "source", cmd.Source)
	return nil
}

// WebhookExecutor posts each command as JSON to the host's console endpoint.
type WebhookExecutor struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookExecutor creates an executor posting to url.
func NewWebhookExecutor(url string, logger *slog.Logger) *WebhookExecutor {
	return &WebhookExecutor{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type webhookRequest struct {
	RequestID string `json:"request_id"`
	Command   string `json:"command"`
	Source    string `json:"source,omitempty"`
}

func (e *WebhookExecutor) Execute(ctx context.Context, cmd *queue.Command) error {
	body, err := json.Marshal(webhookRequest{RequestID: cmd.RequestID, Command: cmd.Text, Source: cmd.Source})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal command: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", cmd.RequestID)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post command: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		e.logger.Debug("Command delivered", "request_id", cmd.RequestID, "status", resp.StatusCode)
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: host rejected command with status %d", ErrPermanent, resp.StatusCode)
	default:
		return fmt.Errorf("host returned status %d", resp.StatusCode)
	}
}
