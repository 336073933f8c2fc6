package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStake(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Stake
		wantErr bool
	}{
		{name: "plain", args: []string{"iron_ore", "16"}, want: Stake{Type: "IRON_ORE", Quantity: 16}},
		{name: "damaged tool", args: []string{"diamond_pickaxe", "1", "1561", "400"}, want: Stake{Type: "DIAMOND_PICKAXE", Quantity: 1, MaxDurability: 1561, Damage: 400}},
		{name: "missing quantity", args: []string{"iron_ore"}, wantErr: true},
		{name: "three args", args: []string{"iron_ore", "1", "5"}, wantErr: true},
		{name: "zero quantity", args: []string{"iron_ore", "0"}, wantErr: true},
		{name: "not a number", args: []string{"iron_ore", "lots"}, wantErr: true},
		{name: "damage over max", args: []string{"shears", "1", "238", "300"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStake(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", money(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "$20.00", money(decimal.NewFromInt(20)))
	assert.Equal(t, "$0.13", money(decimal.RequireFromString("0.125")))
}

func TestDescribeStake(t *testing.T) {
	assert.Equal(t, "4 × IRON_ORE", describeStake(Stake{Type: "IRON_ORE", Quantity: 4}))
	assert.Equal(t, "1 × SHEARS (200/238)", describeStake(Stake{Type: "SHEARS", Quantity: 1, MaxDurability: 238, Damage: 38}))
}

func TestDescribeEvent(t *testing.T) {
	sale := SSEEvent{Type: "sale.completed", Data: map[string]interface{}{
		"data": map[string]interface{}{"total": "20", "npc_name": "Miner", "count": float64(4)},
	}}
	assert.Equal(t, "Sale: 4 items to Miner for $20", describeEvent(sale))
	assert.Empty(t, describeEvent(SSEEvent{Type: "session.preview"}))
	assert.Contains(t, describeEvent(SSEEvent{Type: "ledger.daily_reset"}), "new trading day")
}

// fakeTrader answers the handful of routes the command tests touch
type fakeTrader struct {
	t       *testing.T
	staged  []Stake
	settles int
}

func (f *fakeTrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/stage"):
		var s Stake
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&s))
		f.staged = append(f.staged, s)
		_ = json.NewEncoder(w).Encode(f.quote())
	case strings.HasSuffix(r.URL.Path, "/total"):
		_ = json.NewEncoder(w).Encode(f.quote())
	case strings.HasSuffix(r.URL.Path, "/settle"):
		f.settles++
		if f.settles == 1 {
			_ = json.NewEncoder(w).Encode(SettleResult{
				Outcome:  "confirmation_required",
				Quote:    f.quote(),
				Message:  "That is a big sale. Sell again to confirm.",
				Deadline: time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(SettleResult{Outcome: "settled", Quote: f.quote(), Message: "Pleasure doing business."})
	case strings.HasSuffix(r.URL.Path, "/filter"):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "unknown category weapons", Code: "INVALID_ITEM"})
	case r.URL.Path == "/v1/sessions/compare":
		assert.Equal(f.t, "IRON_ORE,BEDROCK", r.URL.Query().Get("items"))
		_ = json.NewEncoder(w).Encode([]Comparison{
			{Item: "IRON_ORE", Offers: []Offer{{NPCID: "miner", Price: decimal.NewFromInt(5)}, {NPCID: "smith", Price: decimal.NewFromInt(4)}}},
			{Item: "BEDROCK"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "no open session", Code: "SESSION_NOT_FOUND"})
	}
}

func (f *fakeTrader) quote() Quote {
	q := Quote{}
	for _, s := range f.staged {
		v := decimal.NewFromInt(int64(5 * s.Quantity))
		q.Lines = append(q.Lines, QuoteLine{Stake: s, UnitPrice: decimal.NewFromInt(5), Value: v})
		q.Total = q.Total.Add(v)
		q.Count += s.Quantity
	}
	return q
}

func newTestAPI(t *testing.T) (*API, *fakeTrader) {
	t.Helper()
	fake := &fakeTrader{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewAPI(srv.Client(), srv.URL, uuid.New()), fake
}

func TestRunCommandSellFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	lines, err := runCommand(api, "miner", "stage iron_ore 40", now)
	require.NoError(t, err)
	assert.Equal(t, "Staged 40 × IRON_ORE.", lines[0])
	assert.Equal(t, "Total: $200.00 for 40 items", lines[len(lines)-1])

	lines, err = runCommand(api, "miner", "/sell", now)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "10 seconds")
	assert.Contains(t, lines[1], "$200.00")

	lines, err = runCommand(api, "miner", "sell close", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pleasure doing business.", "Sold 40 items for $200.00."}, lines)
}

func TestRunCommandErrors(t *testing.T) {
	api, _ := newTestAPI(t)
	now := time.Now()

	_, err := runCommand(api, "miner", "dance", now)
	assert.ErrorContains(t, err, "unknown command")

	_, err = runCommand(api, "miner", "unstage", now)
	assert.ErrorContains(t, err, "usage")

	_, err = runCommand(api, "miner", "filter weapons", now)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INVALID_ITEM", apiErr.Code)

	_, err = runCommand(api, "miner", "close", now)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "SESSION_NOT_FOUND", apiErr.Code)

	lines, err := runCommand(api, "miner", "   ", now)
	assert.NoError(t, err)
	assert.Nil(t, lines)
}

func TestRunCommandCompare(t *testing.T) {
	api, _ := newTestAPI(t)

	lines, err := runCommand(api, "miner", "compare IRON_ORE BEDROCK", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"IRON_ORE: best $5.00 at miner (2 traders)",
		"BEDROCK: nobody buys this",
	}, lines)
}

func TestSessionMissingIsNil(t *testing.T) {
	api, _ := newTestAPI(t)

	s, err := api.Session()
	assert.NoError(t, err)
	assert.Nil(t, s)
}
