package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// PollInterval is how often WaitForHealthy checks the API
	PollInterval = 1 * time.Second
	// StartupTimeout is the longest WaitForHealthy waits
	StartupTimeout = 30 * time.Second
)

// Doer sends HTTP requests; *http.Client satisfies it
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// call sends one JSON request and returns the status and raw body
func (r *Runner) call(ctx context.Context, method, path string, body any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, string(data), nil
}

// WaitForHealthy polls /health until the API answers or the timeout passes.
// A degraded answer counts; the scheduler may still be starting.
func (r *Runner) WaitForHealthy(ctx context.Context) error {
	timeout := time.After(StartupTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		status, _, err := r.call(ctx, http.MethodGet, "/health", nil)
		if err == nil && (status == http.StatusOK || status == http.StatusServiceUnavailable) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for API health (waited %v)", StartupTimeout)
		case <-ticker.C:
		}
	}
}

func decodeDocument(text string) (any, error) {
	var doc any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	return doc, nil
}

// lookup walks a dotted path through decoded JSON. Numeric segments index
// arrays. Missing paths render as "<missing>".
func lookup(doc any, path string) string {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return "<missing>"
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return "<missing>"
			}
			cur = node[i]
		default:
			return "<missing>"
		}
	}

	switch v := cur.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}
