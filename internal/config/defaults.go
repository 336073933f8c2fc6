package config

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// Default values for optional trader settings.
const (
	DefaultDailyLimit              = 10000.0
	DefaultCooldownSeconds         = 30
	DefaultConfirmThreshold        = 100.0
	DefaultConfirmWindowSeconds    = 10
	DefaultSellSlots               = 36
	DefaultPreviewIntervalMS       = 500
	DefaultIdleTimeoutSeconds      = 300
	DefaultLookRadius              = 5.0
	DefaultEffectIntervalMS        = 2000
	DefaultEffectCount             = 3
	DefaultDisplayIntervalSeconds  = 5
	DefaultDisplayHeight           = 2.3
	DefaultLineSpacing             = 0.25
	DefaultPriceLineFormat         = "&e{item}: &6${price}"
	DefaultPriceLineMax            = 3
	DefaultLookIntervalMS          = 500
	DefaultValidateIntervalSeconds = 300
	DefaultDailyCheckSeconds       = 60
	DefaultRedundantResetHours     = 6
	DefaultAutosaveSeconds         = 60
)

// DefaultPrices seed a config that names no prices.
var DefaultPrices = map[string]float64{
	"COAL":         1,
	"IRON_ORE":     5,
	"GOLD_ORE":     10,
	"EMERALD":      50,
	"DIAMOND":      100,
	"WHEAT":        0.5,
	"CARROT":       0.5,
	"POTATO":       0.5,
	"BREAD":        1,
	"IRON_PICKAXE": 20,
	"IRON_SWORD":   25,
	"COBBLESTONE":  0.1,
	"OAK_LOG":      0.5,
}

// DefaultCategories seed a config that names no categories.
var DefaultCategories = []CategoryConfig{
	{Name: "ores", Items: []string{"COAL", "IRON_ORE", "GOLD_ORE", "EMERALD", "DIAMOND"}},
	{Name: "food", Items: []string{"WHEAT", "CARROT", "POTATO", "BREAD"}},
	{Name: "tools", Items: []string{"IRON_PICKAXE", "IRON_SWORD"}},
	{Name: "blocks", Items: []string{"COBBLESTONE", "OAK_LOG"}},
}

// DefaultTraderConfig returns a config with every default applied.
func DefaultTraderConfig() *TraderConfig {
	cfg := &TraderConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *TraderConfig) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *TraderConfig) applyDefaults() {
	// Limits
	if c.Limits.DailyLimit < 0 {
		c.warnf("limits.daily_limit %v is negative, using %v", c.Limits.DailyLimit, DefaultDailyLimit)
		c.Limits.DailyLimit = 0
	}
	if c.Limits.DailyLimit == 0 {
		c.Limits.DailyLimit = DefaultDailyLimit
	}
	if c.Limits.CooldownSeconds == nil {
		v := DefaultCooldownSeconds
		c.Limits.CooldownSeconds = &v
	} else if *c.Limits.CooldownSeconds < 0 {
		c.warnf("limits.cooldown_seconds %d is negative, using %d", *c.Limits.CooldownSeconds, DefaultCooldownSeconds)
		v := DefaultCooldownSeconds
		c.Limits.CooldownSeconds = &v
	}

	// Confirmation
	if c.Confirmation.Threshold < 0 {
		c.warnf("confirmation.threshold %v is negative, using %v", c.Confirmation.Threshold, DefaultConfirmThreshold)
		c.Confirmation.Threshold = 0
	}
	if c.Confirmation.Threshold == 0 {
		c.Confirmation.Threshold = DefaultConfirmThreshold
	}
	c.Confirmation.WindowSeconds = c.positive("confirmation.window_seconds", c.Confirmation.WindowSeconds, DefaultConfirmWindowSeconds)

	// Session
	c.Session.SellSlots = c.positive("session.sell_slots", c.Session.SellSlots, DefaultSellSlots)
	c.Session.PreviewIntervalMS = c.positive("session.preview_interval_ms", c.Session.PreviewIntervalMS, DefaultPreviewIntervalMS)
	c.Session.IdleTimeoutSeconds = c.positive("session.idle_timeout_seconds", c.Session.IdleTimeoutSeconds, DefaultIdleTimeoutSeconds)

	// NPC behaviour
	if c.NPC.LookRadius <= 0 {
		if c.NPC.LookRadius < 0 {
			c.warnf("npc.look_radius %v is negative, using %v", c.NPC.LookRadius, DefaultLookRadius)
		}
		c.NPC.LookRadius = DefaultLookRadius
	}
	if c.NPC.Effect == "" {
		c.NPC.Effect = string(world.DefaultEffect)
	} else if _, ok := world.ParseEffect(c.NPC.Effect); !ok {
		c.warnf("npc.effect %q is unknown, using %s", c.NPC.Effect, world.DefaultEffect)
		c.NPC.Effect = string(world.DefaultEffect)
	}
	c.NPC.EffectIntervalMS = c.positive("npc.effect_interval_ms", c.NPC.EffectIntervalMS, DefaultEffectIntervalMS)
	c.NPC.EffectCount = c.positive("npc.effect_count", c.NPC.EffectCount, DefaultEffectCount)
	c.NPC.DisplayIntervalSeconds = c.positive("npc.display_interval_seconds", c.NPC.DisplayIntervalSeconds, DefaultDisplayIntervalSeconds)
	if len(c.NPC.DisplayLines) == 0 {
		c.NPC.DisplayLines = append([]string(nil), npc.DefaultDisplayLines...)
	}
	if c.NPC.DisplayHeight <= 0 {
		c.NPC.DisplayHeight = DefaultDisplayHeight
	}
	if c.NPC.LineSpacing <= 0 {
		c.NPC.LineSpacing = DefaultLineSpacing
	}
	if c.NPC.PriceLineFormat == "" {
		c.NPC.PriceLineFormat = DefaultPriceLineFormat
	}
	c.NPC.PriceLineMax = c.positive("npc.price_line_max", c.NPC.PriceLineMax, DefaultPriceLineMax)

	// Tasks
	c.Tasks.LookIntervalMS = c.positive("tasks.look_interval_ms", c.Tasks.LookIntervalMS, DefaultLookIntervalMS)
	c.Tasks.ValidateIntervalSeconds = c.positive("tasks.validate_interval_seconds", c.Tasks.ValidateIntervalSeconds, DefaultValidateIntervalSeconds)
	c.Tasks.DailyCheckSeconds = c.positive("tasks.daily_check_seconds", c.Tasks.DailyCheckSeconds, DefaultDailyCheckSeconds)
	c.Tasks.RedundantResetHours = c.positive("tasks.redundant_reset_hours", c.Tasks.RedundantResetHours, DefaultRedundantResetHours)
	c.Tasks.AutosaveSeconds = c.positive("tasks.autosave_seconds", c.Tasks.AutosaveSeconds, DefaultAutosaveSeconds)

	// Catalog
	if len(c.Prices) == 0 {
		c.Prices = make(map[string]float64, len(DefaultPrices))
		for k, v := range DefaultPrices {
			c.Prices[k] = v
		}
	}
	for item, p := range c.Prices {
		if p < 0 {
			c.warnf("prices.%s %v is negative, treated as not purchasable", item, p)
		}
	}
	if len(c.Categories) == 0 {
		for _, cat := range DefaultCategories {
			c.Categories = append(c.Categories, CategoryConfig{Name: cat.Name, Items: append([]string(nil), cat.Items...)})
		}
	}
	for i := range c.Categories {
		c.Categories[i].Name = strings.ToLower(strings.TrimSpace(c.Categories[i].Name))
	}

	// NPCs: unknown enum values are reported once here and folded to defaults.
	for i := range c.NPCs {
		n := &c.NPCs[i]
		if n.Kind != "" {
			if _, ok := world.ParseKind(n.Kind); !ok {
				c.warnf("npcs[%s].kind %q is unknown, using %s", n.ID, n.Kind, world.DefaultKind)
			}
		}
		if n.Profession != "" {
			if _, ok := npc.ParseProfession(n.Profession); !ok {
				c.warnf("npcs[%s].profession %q is unknown, using %s", n.ID, n.Profession, npc.DefaultProfession)
			}
		}
	}
}

// positive returns v, or def when v is not positive. Negative values are
// reported as warnings; zero means unset.
func (c *TraderConfig) positive(field string, v, def int) int {
	if v > 0 {
		return v
	}
	if v < 0 {
		c.warnf("%s %d is negative, using %d", field, v, def)
	}
	return def
}
