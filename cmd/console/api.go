package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// APIError is a non-2xx answer from the API
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Msg, e.Code)
	}
	return e.Msg
}

type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

type NPCView struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Enabled           bool     `json:"enabled"`
	State             string   `json:"state"`
	Location          Location `json:"location"`
	DailyInteractions int      `json:"daily_interactions"`
}

type Stake struct {
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	MaxDurability int    `json:"max_durability,omitempty"`
	Damage        int    `json:"damage,omitempty"`
}

type QuoteLine struct {
	Stake     Stake           `json:"stake"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Value     decimal.Decimal `json:"value"`
}

type Quote struct {
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Lines    []QuoteLine     `json:"lines"`
	Excluded []Stake         `json:"excluded,omitempty"`
}

type SessionView struct {
	NPCID   string  `json:"npc_id"`
	Filter  string  `json:"filter"`
	Phase   string  `json:"phase"`
	Staged  []Stake `json:"staged"`
	Preview Quote   `json:"preview"`
}

type Interaction struct {
	NPCID    string       `json:"npc_id"`
	Greeting string       `json:"greeting,omitempty"`
	Session  *SessionView `json:"session,omitempty"`
}

type SettleResult struct {
	Outcome  string    `json:"outcome"`
	Quote    Quote     `json:"quote"`
	Message  string    `json:"message"`
	Deadline time.Time `json:"deadline"`
}

type PriceLine struct {
	Item  string          `json:"item"`
	Price decimal.Decimal `json:"price"`
}

type Offer struct {
	NPCID string          `json:"npc_id"`
	Price decimal.Decimal `json:"price"`
}

type Comparison struct {
	Item   string  `json:"item"`
	Offers []Offer `json:"offers"`
}

type PlayerView struct {
	DailySold            decimal.Decimal `json:"daily_sold"`
	DailyTransactions    int             `json:"daily_transactions"`
	LifetimeSold         decimal.Decimal `json:"lifetime_sold"`
	LifetimeTransactions int             `json:"lifetime_transactions"`
	LastSell             time.Time       `json:"last_sell"`
	BestSale             decimal.Decimal `json:"best_sale"`
	Remaining            decimal.Decimal `json:"remaining_limit"`
	Online               bool            `json:"online"`
	Holdings             []Stake         `json:"holdings"`
}

// API talks to the trader engine for one player
type API struct {
	client  *http.Client
	baseURL string
	player  uuid.UUID
}

func NewAPI(client *http.Client, baseURL string, player uuid.UUID) *API {
	return &API{client: client, baseURL: strings.TrimRight(baseURL, "/"), player: player}
}

func (a *API) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return &APIError{Status: resp.StatusCode, Msg: fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(data))}
		}
		return &APIError{Status: resp.StatusCode, Code: errorResp.Code, Msg: errorResp.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (a *API) playerPath(suffix string) string {
	return "/v1/players/" + a.player.String() + suffix
}

func (a *API) sessionPath(suffix string) string {
	return "/v1/sessions/" + a.player.String() + suffix
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	// degraded still answers
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusServiceUnavailable
}

// ListNPCs returns enabled NPCs first, then by name
func (a *API) ListNPCs() ([]NPCView, error) {
	var npcs []NPCView
	if err := a.do(http.MethodGet, "/v1/npcs", nil, &npcs); err != nil {
		return nil, err
	}
	sort.SliceStable(npcs, func(i, j int) bool {
		if npcs[i].Enabled != npcs[j].Enabled {
			return npcs[i].Enabled
		}
		return npcs[i].Name < npcs[j].Name
	})
	return npcs, nil
}

func (a *API) Join(loc Location) error {
	return a.do(http.MethodPost, a.playerPath("/join"), map[string]any{"location": loc}, nil)
}

func (a *API) Leave() error {
	return a.do(http.MethodPost, a.playerPath("/leave"), nil, nil)
}

func (a *API) Give(s Stake) error {
	return a.do(http.MethodPost, a.playerPath("/items"), s, nil)
}

func (a *API) Player() (*PlayerView, error) {
	var p PlayerView
	if err := a.do(http.MethodGet, a.playerPath(""), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) Interact(npcID string) (*Interaction, error) {
	var out Interaction
	body := map[string]any{"player": a.player, "npc_id": npcID}
	if err := a.do(http.MethodPost, "/v1/interact", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session returns nil without error when no session is open
func (a *API) Session() (*SessionView, error) {
	var s SessionView
	err := a.do(http.MethodGet, a.sessionPath(""), nil, &s)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *API) Close() error {
	return a.do(http.MethodDelete, a.sessionPath(""), nil, nil)
}

func (a *API) Stage(s Stake) (*Quote, error) {
	var q Quote
	if err := a.do(http.MethodPost, a.sessionPath("/stage"), s, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (a *API) Unstage(index int) (*Quote, error) {
	var q Quote
	if err := a.do(http.MethodPost, a.sessionPath("/unstage"), map[string]int{"index": index}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (a *API) Total() (*Quote, error) {
	var q Quote
	if err := a.do(http.MethodGet, a.sessionPath("/total"), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (a *API) Settle(closeAfter bool) (*SettleResult, error) {
	var res SettleResult
	if err := a.do(http.MethodPost, a.sessionPath("/settle"), map[string]bool{"close": closeAfter}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) SellCategory() (*SettleResult, error) {
	var res SettleResult
	if err := a.do(http.MethodPost, a.sessionPath("/sell-category"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) Filter(category string) (string, error) {
	var out struct {
		Filter string `json:"filter"`
	}
	if err := a.do(http.MethodPost, a.sessionPath("/filter"), map[string]string{"category": category}, &out); err != nil {
		return "", err
	}
	return out.Filter, nil
}

func (a *API) Prices() ([]PriceLine, error) {
	var lines []PriceLine
	if err := a.do(http.MethodGet, a.sessionPath("/prices"), nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (a *API) Compare(items []string) ([]Comparison, error) {
	var out []Comparison
	path := "/v1/sessions/compare"
	if len(items) > 0 {
		path += "?items=" + url.QueryEscape(strings.Join(items, ","))
	}
	if err := a.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// listenToSSE connects to the player's event stream and forwards events to
// eventChan until ctx is done or the stream ends
func listenToSSE(ctx context.Context, client *http.Client, baseURL string, player uuid.UUID, eventChan chan<- SSEEvent) error {
	u := fmt.Sprintf("%s/v1/events/%s", baseURL, player.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				currentEvent.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
