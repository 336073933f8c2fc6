package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/trader-engine/pkg/catalog"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/trade"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// TraderConfig is the YAML trading configuration.
type TraderConfig struct {
	Features     Features           `yaml:"features"`
	Limits       LimitsConfig       `yaml:"limits"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
	Session      SessionConfig      `yaml:"session"`
	NPC          BehaviorConfig     `yaml:"npc"`
	Tasks        TasksConfig        `yaml:"tasks"`
	Prices       map[string]float64 `yaml:"prices"`
	Categories   []CategoryConfig   `yaml:"categories"`
	NPCs         []NPCConfig        `yaml:"npcs"`
	SellCommands []string           `yaml:"sell_commands"`
	Messages     map[string]string  `yaml:"messages"`

	// Warnings lists settings that were out of range or unknown and were
	// replaced by defaults.
	Warnings []string `yaml:"-"`
}

// Features are on unless set to false.
type Features struct {
	SellSystem      *bool `yaml:"sell_system"`
	Limits          *bool `yaml:"limits"`
	Categories      *bool `yaml:"categories"`
	Previews        *bool `yaml:"previews"`
	Confirmation    *bool `yaml:"confirmation"`
	Comparison      *bool `yaml:"comparison"`
	CategorySellAll *bool `yaml:"category_sell_all"`
	Effects         *bool `yaml:"effects"`
	Displays        *bool `yaml:"displays"`
	PriceLines      *bool `yaml:"price_lines"`
	SuccessEffect   *bool `yaml:"success_effect"`
}

type LimitsConfig struct {
	DailyLimit      float64 `yaml:"daily_limit"`
	CooldownSeconds *int    `yaml:"cooldown_seconds"`
}

type ConfirmationConfig struct {
	Threshold     float64 `yaml:"threshold"`
	WindowSeconds int     `yaml:"window_seconds"`
}

type SessionConfig struct {
	SellSlots          int `yaml:"sell_slots"`
	PreviewIntervalMS  int `yaml:"preview_interval_ms"`
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
}

type BehaviorConfig struct {
	LookRadius             float64  `yaml:"look_radius"`
	Effect                 string   `yaml:"effect"`
	EffectIntervalMS       int      `yaml:"effect_interval_ms"`
	EffectCount            int      `yaml:"effect_count"`
	DisplayIntervalSeconds int      `yaml:"display_interval_seconds"`
	DisplayLines           []string `yaml:"display_lines"`
	DisplayHeight          float64  `yaml:"display_height"`
	LineSpacing            float64  `yaml:"line_spacing"`
	PriceLineFormat        string   `yaml:"price_line_format"`
	PriceLineMax           int      `yaml:"price_line_max"`
}

// TasksConfig sets the recurring task intervals.
type TasksConfig struct {
	LookIntervalMS          int `yaml:"look_interval_ms"`
	ValidateIntervalSeconds int `yaml:"validate_interval_seconds"`
	DailyCheckSeconds       int `yaml:"daily_check_seconds"`
	RedundantResetHours     int `yaml:"redundant_reset_hours"`
	AutosaveSeconds         int `yaml:"autosave_seconds"`
}

type CategoryConfig struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

type NPCConfig struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Location     world.Location     `yaml:"location"`
	Enabled      *bool              `yaml:"enabled"`
	Kind         string             `yaml:"kind"`
	Profession   string             `yaml:"profession"`
	Greeting     string             `yaml:"greeting"`
	Commands     []string           `yaml:"commands"`
	CustomPrices bool               `yaml:"custom_prices"`
	Prices       map[string]float64 `yaml:"prices"`
}

var envRef = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// ExpandEnv replaces ${NAME} references to set environment variables.
// Anything else, including message templates like ${total_price}, is kept.
func ExpandEnv(text string) string {
	return envRef.ReplaceAllStringFunc(text, func(ref string) string {
		if v, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}

// LoadTrader reads a YAML trader config and expands environment variables.
func LoadTrader(path string) (*TraderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trader config: %w", err)
	}
	return ParseTrader(data)
}

// ParseTrader parses YAML, applies defaults and validates.
func ParseTrader(data []byte) (*TraderConfig, error) {
	expanded := ExpandEnv(string(data))

	var cfg TraderConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse trader config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate trader config: %w", err)
	}
	return &cfg, nil
}

// LoadTraderOrDefault falls back to DefaultTraderConfig when path does not
// exist. Other read and parse failures are returned.
func LoadTraderOrDefault(path string) (*TraderConfig, error) {
	cfg, err := LoadTrader(path)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg = DefaultTraderConfig()
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("trader config %s not found, using defaults", path))
		return cfg, nil
	}
	return nil, err
}

func on(b *bool) bool {
	return b == nil || *b
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func decimals(m map[string]float64) map[string]decimal.Decimal {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[catalog.NormalizeItem(k)] = decimal.NewFromFloat(v)
	}
	return out
}

// Settings converts the config into engine settings.
func (c *TraderConfig) Settings() trade.Settings {
	f := c.Features
	cooldown := DefaultCooldownSeconds
	if c.Limits.CooldownSeconds != nil {
		cooldown = *c.Limits.CooldownSeconds
	}
	return trade.Settings{
		Enabled:           on(f.SellSystem),
		LimitsEnabled:     on(f.Limits),
		CategoriesEnabled: on(f.Categories),
		PreviewEnabled:    on(f.Previews),
		ConfirmEnabled:    on(f.Confirmation),
		ComparisonEnabled: on(f.Comparison),
		CategorySellAll:   on(f.CategorySellAll),
		SuccessEffect:     on(f.SuccessEffect),
		DailyLimit:        decimal.NewFromFloat(c.Limits.DailyLimit),
		CooldownSeconds:   cooldown,
		ConfirmThreshold:  decimal.NewFromFloat(c.Confirmation.Threshold),
		ConfirmWindow:     seconds(c.Confirmation.WindowSeconds),
		PreviewInterval:   millis(c.Session.PreviewIntervalMS),
		SellSlots:         c.Session.SellSlots,
		IdleTimeout:       seconds(c.Session.IdleTimeoutSeconds),
		SellCommands:      append([]string(nil), c.SellCommands...),
		Messages:          c.Messages,
	}
}

// Behavior converts the NPC section into registry behaviour settings.
func (c *TraderConfig) Behavior() npc.Behavior {
	effect, _ := world.ParseEffect(c.NPC.Effect)
	return npc.Behavior{
		LookRadius:      c.NPC.LookRadius,
		EffectsEnabled:  on(c.Features.Effects),
		Effect:          effect,
		EffectInterval:  millis(c.NPC.EffectIntervalMS),
		EffectCount:     c.NPC.EffectCount,
		DisplaysEnabled: on(c.Features.Displays),
		DisplayInterval: seconds(c.NPC.DisplayIntervalSeconds),
		DisplayLines:    append([]string(nil), c.NPC.DisplayLines...),
		DisplayHeight:   c.NPC.DisplayHeight,
		LineSpacing:     c.NPC.LineSpacing,
		PriceLines:      on(c.Features.PriceLines),
		PriceLineFormat: c.NPC.PriceLineFormat,
		PriceLineMax:    c.NPC.PriceLineMax,
	}
}

// Table converts prices and categories into a catalog table. Per-NPC
// overrides are synced by the registry from the NPC records.
func (c *TraderConfig) Table() catalog.Table {
	t := catalog.Table{Prices: decimals(c.Prices)}
	for _, cat := range c.Categories {
		t.Categories = append(t.Categories, catalog.Category{
			Name:  cat.Name,
			Items: append([]string(nil), cat.Items...),
		})
	}
	return t
}

// Records converts the configured NPCs into registry records.
func (c *TraderConfig) Records() []npc.Record {
	out := make([]npc.Record, 0, len(c.NPCs))
	for _, n := range c.NPCs {
		kind, _ := world.ParseKind(n.Kind)
		prof, _ := npc.ParseProfession(n.Profession)
		out = append(out, npc.Record{
			ID:           n.ID,
			Name:         n.Name,
			Location:     n.Location,
			Enabled:      n.Enabled == nil || *n.Enabled,
			Kind:         kind,
			Profession:   prof,
			Greeting:     n.Greeting,
			Commands:     append([]string(nil), n.Commands...),
			CustomPrices: n.CustomPrices,
			Prices:       decimals(n.Prices),
		})
	}
	return out
}

// TaskIntervals returns the recurring task intervals.
func (c *TraderConfig) TaskIntervals() Intervals {
	return Intervals{
		Look:           millis(c.Tasks.LookIntervalMS),
		Validate:       seconds(c.Tasks.ValidateIntervalSeconds),
		DailyCheck:     seconds(c.Tasks.DailyCheckSeconds),
		RedundantReset: time.Duration(c.Tasks.RedundantResetHours) * time.Hour,
		Autosave:       seconds(c.Tasks.AutosaveSeconds),
	}
}

// Intervals are the periods of the simulation's recurring tasks.
type Intervals struct {
	Look           time.Duration
	Validate       time.Duration
	DailyCheck     time.Duration
	RedundantReset time.Duration
	Autosave       time.Duration
}
