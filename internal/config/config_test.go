package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trader.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_BACKEND", "SQLite")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.StorageBackend != BackendSQLite {
		t.Errorf("StorageBackend = %q, want sqlite", cfg.StorageBackend)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
}

func TestParseBackend(t *testing.T) {
	tests := map[string]string{
		"redis":   BackendRedis,
		"memory":  BackendMemory,
		"mock":    BackendMemory,
		"sqlite":  BackendSQLite,
		"unknown": BackendRedis,
	}
	for in, want := range tests {
		if got := parseBackend(in); got != want {
			t.Errorf("parseBackend(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadTrader(t *testing.T) {
	yaml := `
features:
  comparison: false
limits:
  daily_limit: 500
  cooldown_seconds: 0
confirmation:
  threshold: 50
prices:
  iron_ore: 5.0
  diamond: 100
categories:
  - name: Ores
    items: [IRON_ORE, DIAMOND]
sell_commands:
  - "eco give {player} {total_price}"
npcs:
  - id: bob
    name: Bob
    location: {world: world, x: 10, y: 64, z: -3}
    profession: librarian
    custom_prices: true
    prices:
      diamond: 120
  - id: closed_shop
    enabled: false
`
	cfg, err := LoadTrader(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("LoadTrader failed: %v", err)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", cfg.Warnings)
	}

	s := cfg.Settings()
	if !s.DailyLimit.Equal(decimal.NewFromInt(500)) {
		t.Errorf("DailyLimit = %s, want 500", s.DailyLimit)
	}
	if s.CooldownSeconds != 0 {
		t.Errorf("CooldownSeconds = %d, want 0 (explicitly disabled)", s.CooldownSeconds)
	}
	if s.ComparisonEnabled {
		t.Error("comparison should be disabled")
	}
	if !s.PreviewEnabled || !s.Enabled {
		t.Error("unset features should default to on")
	}
	if s.ConfirmWindow != 10*time.Second {
		t.Errorf("ConfirmWindow = %v, want 10s", s.ConfirmWindow)
	}
	if len(s.SellCommands) != 1 {
		t.Errorf("SellCommands = %v", s.SellCommands)
	}

	table := cfg.Table()
	if !table.Prices["IRON_ORE"].Equal(decimal.NewFromInt(5)) {
		t.Errorf("IRON_ORE price = %s, want 5", table.Prices["IRON_ORE"])
	}
	if len(table.Categories) != 1 || table.Categories[0].Name != "ores" {
		t.Errorf("categories = %+v", table.Categories)
	}

	recs := cfg.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !recs[0].Enabled || recs[1].Enabled {
		t.Errorf("enabled flags = %v, %v", recs[0].Enabled, recs[1].Enabled)
	}
	if recs[0].Profession != npc.ProfessionLibrarian {
		t.Errorf("profession = %s", recs[0].Profession)
	}
	if recs[0].Kind != world.DefaultKind {
		t.Errorf("kind = %s, want default", recs[0].Kind)
	}
	if !recs[0].Prices["DIAMOND"].Equal(decimal.NewFromInt(120)) {
		t.Errorf("override = %v", recs[0].Prices)
	}
	if recs[0].Location.X != 10 || recs[0].Location.World != "world" {
		t.Errorf("location = %+v", recs[0].Location)
	}
}

func TestInvalidValuesFallBackWithWarnings(t *testing.T) {
	yaml := `
limits:
  daily_limit: -5
  cooldown_seconds: -1
session:
  sell_slots: -2
npc:
  effect: fireworks
npcs:
  - id: bob
    kind: dragon
    profession: wizard
`
	cfg, err := ParseTrader([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseTrader failed: %v", err)
	}
	if len(cfg.Warnings) != 6 {
		t.Errorf("expected 6 warnings, got %d: %v", len(cfg.Warnings), cfg.Warnings)
	}
	s := cfg.Settings()
	if !s.DailyLimit.Equal(decimal.NewFromFloat(DefaultDailyLimit)) {
		t.Errorf("DailyLimit = %s", s.DailyLimit)
	}
	if s.CooldownSeconds != DefaultCooldownSeconds {
		t.Errorf("CooldownSeconds = %d", s.CooldownSeconds)
	}
	if s.SellSlots != DefaultSellSlots {
		t.Errorf("SellSlots = %d", s.SellSlots)
	}
	if b := cfg.Behavior(); b.Effect != world.DefaultEffect {
		t.Errorf("Effect = %s", b.Effect)
	}
	rec := cfg.Records()[0]
	if rec.Kind != world.DefaultKind || rec.Profession != npc.DefaultProfession {
		t.Errorf("enums = %s, %s", rec.Kind, rec.Profession)
	}
}

func TestValidateRejectsBadNPCs(t *testing.T) {
	yaml := `
npcs:
  - id: "bad id!"
  - id: bob
  - id: bob
categories:
  - name: all
    items: [DIRT]
`
	_, err := ParseTrader([]byte(yaml))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestDefaultTraderConfig(t *testing.T) {
	cfg := DefaultTraderConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if len(cfg.Prices) == 0 || len(cfg.Categories) == 0 {
		t.Error("defaults should seed prices and categories")
	}
	iv := cfg.TaskIntervals()
	if iv.Look != 500*time.Millisecond || iv.Validate != 5*time.Minute ||
		iv.DailyCheck != time.Minute || iv.RedundantReset != 6*time.Hour || iv.Autosave != time.Minute {
		t.Errorf("intervals = %+v", iv)
	}
}

func TestLoadTraderOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadTraderOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Warnings) != 1 {
		t.Errorf("expected a not-found warning, got %v", cfg.Warnings)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TRADER_LIMIT", "250")
	cfg, err := ParseTrader([]byte("limits:\n  daily_limit: ${TRADER_LIMIT}\n"))
	if err != nil {
		t.Fatalf("ParseTrader failed: %v", err)
	}
	if cfg.Limits.DailyLimit != 250 {
		t.Errorf("DailyLimit = %v, want 250", cfg.Limits.DailyLimit)
	}
}

func TestEnvExpansionKeepsTemplates(t *testing.T) {
	t.Setenv("TRADER_LIMIT", "250")
	got := ExpandEnv("limit ${TRADER_LIMIT}, line &6${price}, unset ${NOT_SET_ANYWHERE}, cost $5")
	if got != "limit 250, line &6${price}, unset ${NOT_SET_ANYWHERE}, cost $5" {
		t.Errorf("ExpandEnv = %q", got)
	}
}
