package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings are the engine's feature toggles and numeric parameters.
type Settings struct {
	Enabled           bool
	LimitsEnabled     bool
	CategoriesEnabled bool
	PreviewEnabled    bool
	ConfirmEnabled    bool
	ComparisonEnabled bool
	CategorySellAll   bool
	SuccessEffect     bool

	DailyLimit       decimal.Decimal
	CooldownSeconds  int
	ConfirmThreshold decimal.Decimal
	ConfirmWindow    time.Duration
	PreviewInterval  time.Duration
	SellSlots        int
	// IdleTimeout closes a session nobody has touched for this long.
	IdleTimeout      time.Duration

	// SellCommands run after every sale unless the NPC has its own.
	SellCommands []string
	Messages     map[string]string
}

// DefaultSettings returns the documented defaults with every feature on.
func DefaultSettings() Settings {
	return Settings{
		Enabled:           true,
		LimitsEnabled:     true,
		CategoriesEnabled: true,
		PreviewEnabled:    true,
		ConfirmEnabled:    true,
		ComparisonEnabled: true,
		CategorySellAll:   true,
		SuccessEffect:     true,
		DailyLimit:        decimal.NewFromInt(10000),
		CooldownSeconds:   30,
		ConfirmThreshold:  decimal.NewFromInt(100),
		ConfirmWindow:     10 * time.Second,
		PreviewInterval:   500 * time.Millisecond,
		SellSlots:         36,
		IdleTimeout:       5 * time.Minute,
	}
}

// normalized replaces out-of-range numbers with defaults.
func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if !s.DailyLimit.IsPositive() {
		s.DailyLimit = d.DailyLimit
	}
	if s.CooldownSeconds < 0 {
		s.CooldownSeconds = 0
	}
	if s.ConfirmThreshold.IsNegative() {
		s.ConfirmThreshold = d.ConfirmThreshold
	}
	if s.ConfirmWindow <= 0 {
		s.ConfirmWindow = d.ConfirmWindow
	}
	if s.PreviewInterval <= 0 {
		s.PreviewInterval = d.PreviewInterval
	}
	if s.SellSlots <= 0 {
		s.SellSlots = d.SellSlots
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = d.IdleTimeout
	}
	return s
}

// Message keys.
const (
	MsgSold            = "sold"
	MsgCategorySold    = "category_sold"
	MsgConfirmRequired = "confirm_required"
	MsgOnCooldown      = "on_cooldown"
	MsgLimitReached    = "limit_reached"
	MsgLimitExceeded   = "limit_exceeded"
	MsgNoSellable      = "no_sellable"
	MsgInvalidItem     = "invalid_item"
	MsgMissingItem     = "missing_item"
	MsgSlotsFull       = "slots_full"
	MsgSystemDisabled  = "system_disabled"
	MsgFeatureDisabled = "feature_disabled"
	MsgNPCDisabled     = "npc_disabled"
	MsgNPCNotFound     = "npc_not_found"
	MsgNoSession       = "no_session"
	MsgUnknownCategory = "unknown_category"
	MsgFilterSet       = "filter_set"
	MsgGreeting        = "greeting"
)

// DefaultMessages are used for keys the configuration leaves out.
var DefaultMessages = map[string]string{
	MsgSold:            "&aSold {item_count} items to {npc_name} for ${total_price}.",
	MsgCategorySold:    "&aSold {item_count} {category} items to {npc_name} for ${total_price}.",
	MsgConfirmRequired: "&eThis sale is worth ${total_price}. Sell again within {confirm_seconds}s to confirm.",
	MsgOnCooldown:      "&cPlease wait {cooldown}s before selling again.",
	MsgLimitReached:    "&cYou have reached your daily limit of ${daily_limit}.",
	MsgLimitExceeded:   "&cThat sale of ${total_price} would pass your daily limit. Remaining today: ${remaining}.",
	MsgNoSellable:      "&c{npc_name} will not buy anything you offered.",
	MsgInvalidItem:     "&c{npc_name} does not buy {item}.",
	MsgMissingItem:     "&cYou do not have {item} to offer.",
	MsgSlotsFull:       "&cAll sell slots are full.",
	MsgSystemDisabled:  "&cSelling is currently disabled.",
	MsgFeatureDisabled: "&cThat feature is disabled.",
	MsgNPCDisabled:     "&c{npc_name} is not trading right now.",
	MsgNPCNotFound:     "&cNo trader called {npc_id}.",
	MsgNoSession:       "&cYou are not trading with anyone.",
	MsgUnknownCategory: "&cUnknown category {category}.",
	MsgFilterSet:       "&7Showing {category} items.",
	MsgGreeting:        "&7{npc_name}: Come back later, I am closed.",
}
