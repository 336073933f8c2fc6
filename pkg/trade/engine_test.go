package trade

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/trader-engine/pkg/catalog"
	"github.com/jwebster45206/trader-engine/pkg/clock"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/item"
	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/scheduler"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

type recordingPublisher struct {
	mu       sync.Mutex
	previews []PreviewEvent
	sales    []SaleEvent
}

func (p *recordingPublisher) PublishPreview(ev PreviewEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.previews = append(p.previews, ev)
}

func (p *recordingPublisher) PublishSale(ev SaleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, ev)
}

func (p *recordingPublisher) previewCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.previews)
}

type fixture struct {
	clock  *clock.Manual
	sched  *scheduler.Scheduler
	world  *world.Memory
	cat    *catalog.Catalog
	ledger *ledger.Ledger
	reg    *npc.Registry
	pub    *recordingPublisher
	engine *Engine
	player uuid.UUID
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func priceTable() catalog.Table {
	return catalog.Table{
		Prices: map[string]decimal.Decimal{
			"IRON_ORE":     dec("5.0"),
			"DIAMOND":      dec("100"),
			"WHEAT":        dec("0.5"),
			"BREAD":        dec("1"),
			"IRON_PICKAXE": dec("20"),
			"DIRT":         dec("0"),
		},
		Categories: []catalog.Category{
			{Name: "ores", Items: []string{"IRON_ORE", "DIAMOND", "GOLD_ORE"}},
			{Name: "food", Items: []string{"WHEAT", "BREAD"}},
			{Name: "tools", Items: []string{"IRON_PICKAXE"}},
		},
	}
}

func newFixture(t *testing.T, mutate func(*Settings)) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(clk, log)
	w := world.NewMemory(nil)
	cat := catalog.New(priceTable())
	reg := npc.NewRegistry(w, sched, cat, npc.Behavior{}, log)
	led := ledger.New(clk)
	pub := &recordingPublisher{}

	settings := DefaultSettings()
	settings.DailyLimit = dec("100")
	settings.SuccessEffect = false
	settings.SellCommands = []string{"/eco give {player} {total_price}"}
	if mutate != nil {
		mutate(&settings)
	}

	f := &fixture{
		clock:  clk,
		sched:  sched,
		world:  w,
		cat:    cat,
		ledger: led,
		reg:    reg,
		pub:    pub,
		player: uuid.New(),
	}
	f.engine = NewEngine(settings, Deps{
		Catalog:   cat,
		Ledger:    led,
		Registry:  reg,
		World:     w,
		Players:   w,
		Scheduler: sched,
		Publisher: pub,
		Log:       log,
	})

	_, err := reg.Create(npc.Record{
		ID:       "bob",
		Name:     "Bob",
		Location: world.Location{World: "world", X: 0, Y: 64, Z: 0},
		Enabled:  true,
	})
	require.NoError(t, err)
	w.Join(f.player, world.Location{World: "world", X: 2, Y: 64, Z: 0})
	return f
}

func (f *fixture) give(t *testing.T, stakes ...item.Stake) {
	t.Helper()
	for _, s := range stakes {
		require.True(t, f.world.AddItem(f.player, s))
	}
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	_, err := f.engine.Open(f.player, "bob")
	require.NoError(t, err)
}

func (f *fixture) stage(t *testing.T, s item.Stake) Quote {
	t.Helper()
	q, err := f.engine.Stage(f.player, s)
	require.NoError(t, err)
	return q
}

func held(w *world.Memory, p uuid.UUID, itemType string) int {
	n := 0
	for _, s := range w.Holdings(p) {
		if s.Type == itemType {
			n += s.Quantity
		}
	}
	return n
}

func TestIronOreScenario(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 3})
	f.open(t)

	q := f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 3})
	assert.True(t, q.Total.Equal(dec("15.0")), "total %s", q.Total)
	assert.Equal(t, 3, q.Count)
	assert.Equal(t, 0, held(f.world, f.player, "IRON_ORE"), "staged items leave holdings")

	res, err := f.engine.AttemptSettle(f.player, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.Equal(t, "Sold 3 items to Bob for $15.00.", res.Message)
	assert.True(t, f.ledger.DailySold(f.player).Equal(dec("15")))

	view, ok := f.engine.Session(f.player)
	require.True(t, ok)
	assert.Equal(t, PhaseStaging, view.Phase)
	assert.Empty(t, view.Staged)

	assert.Equal(t, []string{"eco give " + f.player.String() + " 15.00"}, f.world.Commands())
	require.Len(t, f.pub.sales, 1)
	assert.False(t, f.pub.sales[0].Bulk)
}

func TestUnpricedItemsAreNeverStagedOrTotalled(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "DIRT", Quantity: 64}, item.Stake{Type: "IRON_ORE", Quantity: 2})
	f.open(t)

	_, err := f.engine.Stage(f.player, item.Stake{Type: "DIRT", Quantity: 64})
	require.ErrorIs(t, err, apperrors.ErrInvalidItem)
	assert.Equal(t, "Bob does not buy Dirt.", err.Error())
	assert.Equal(t, 64, held(f.world, f.player, "DIRT"), "rejected stake stays in holdings")

	_, err = f.engine.Stage(f.player, item.Stake{Type: "STICK", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidItem)

	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})

	// price drops to zero after staging
	tbl := priceTable()
	tbl.Prices["IRON_ORE"] = decimal.Zero
	f.cat.Reload(tbl)

	q, err := f.engine.ComputeTotal(f.player)
	require.NoError(t, err)
	assert.True(t, q.Total.IsZero())
	assert.Len(t, q.Excluded, 1)
	assert.Empty(t, q.Lines)

	_, err = f.engine.AttemptSettle(f.player, false)
	assert.ErrorIs(t, err, apperrors.ErrNoSellableItems)
	assert.True(t, f.ledger.DailySold(f.player).IsZero())
}

func TestDurabilityPricing(t *testing.T) {
	f := newFixture(t, nil)
	worn := item.Stake{Type: "IRON_PICKAXE", Quantity: 1, MaxDurability: 250, Damage: 125}
	broken := item.Stake{Type: "IRON_PICKAXE", Quantity: 1, MaxDurability: 250, Damage: 249}
	f.give(t, worn, broken)
	f.open(t)

	f.stage(t, worn)
	q := f.stage(t, broken)
	// 20 × 0.5 + 20 × 0.3
	assert.True(t, q.Total.Equal(dec("16")), "total %s", q.Total)
}

func TestLimitExceededLeavesLedgerUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.SetDailySold(f.player, dec("90"))
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 4})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 4})

	_, err := f.engine.AttemptSettle(f.player, false)
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)
	de, _ := apperrors.As(err)
	assert.Equal(t, "10.00", de.Metadata[apperrors.MetaRemainingAmount])

	assert.True(t, f.ledger.DailySold(f.player).Equal(dec("90")))
	assert.Equal(t, 0, f.ledger.DailyTransactions(f.player))
	assert.False(t, f.ledger.IsOnCooldown(f.player))
	view, _ := f.engine.Session(f.player)
	assert.Len(t, view.Staged, 1, "items stay staged")
	assert.Empty(t, f.world.Commands())
}

func TestDailyLimitHoldsAcrossSettlements(t *testing.T) {
	f := newFixture(t, func(s *Settings) {
		s.CooldownSeconds = 0
		s.ConfirmEnabled = false
	})
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 24})
	f.open(t)

	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 12})
	_, err := f.engine.AttemptSettle(f.player, false)
	require.NoError(t, err)

	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 12})
	_, err = f.engine.AttemptSettle(f.player, false)
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	assert.True(t, f.ledger.DailySold(f.player).LessThanOrEqual(dec("100")))
	assert.True(t, f.ledger.DailySold(f.player).Equal(dec("60")))
}

func TestOpenPrechecks(t *testing.T) {
	t.Run("system disabled", func(t *testing.T) {
		f := newFixture(t, func(s *Settings) { s.Enabled = false })
		_, err := f.engine.Open(f.player, "bob")
		assert.ErrorIs(t, err, apperrors.ErrSystemDisabled)
	})

	t.Run("npc not found", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.engine.Open(f.player, "nobody")
		assert.ErrorIs(t, err, apperrors.ErrNPCNotFound)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("npc disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.reg.Toggle("bob")
		require.NoError(t, err)
		_, err = f.engine.Open(f.player, "bob")
		assert.ErrorIs(t, err, apperrors.ErrNPCDisabled)
	})

	t.Run("on cooldown", func(t *testing.T) {
		f := newFixture(t, nil)
		f.ledger.SetCooldown(f.player, 30)
		f.clock.Advance(10 * time.Second)
		_, err := f.engine.Open(f.player, "bob")
		require.ErrorIs(t, err, apperrors.ErrOnCooldown)
		de, _ := apperrors.As(err)
		assert.Equal(t, "20", de.Metadata[apperrors.MetaRemainingSeconds])
		assert.Equal(t, "Please wait 20s before selling again.", de.Message)
	})

	t.Run("limit reached", func(t *testing.T) {
		f := newFixture(t, nil)
		f.ledger.SetDailySold(f.player, dec("100"))
		_, err := f.engine.Open(f.player, "bob")
		assert.ErrorIs(t, err, apperrors.ErrLimitReached)
		assert.Equal(t, 0, f.engine.SessionCount())
	})

	t.Run("limits disabled skips quota checks", func(t *testing.T) {
		f := newFixture(t, func(s *Settings) { s.LimitsEnabled = false })
		f.ledger.SetDailySold(f.player, dec("100"))
		f.ledger.SetCooldown(f.player, 30)
		_, err := f.engine.Open(f.player, "bob")
		assert.NoError(t, err)
	})
}

func TestCooldownAfterSale(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.CooldownSeconds = 30 })
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 1})

	_, err := f.engine.AttemptSettle(f.player, false)
	require.NoError(t, err)
	assert.True(t, f.ledger.IsOnCooldown(f.player))

	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 1})
	_, err = f.engine.AttemptSettle(f.player, false)
	assert.ErrorIs(t, err, apperrors.ErrOnCooldown)

	f.sched.Advance(31 * time.Second)
	assert.False(t, f.ledger.IsOnCooldown(f.player))
	_, err = f.engine.AttemptSettle(f.player, false)
	assert.NoError(t, err)
}

func TestConfirmation(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		f := newFixture(t, func(s *Settings) { s.DailyLimit = dec("1000") })
		f.give(t, item.Stake{Type: "DIAMOND", Quantity: 1})
		f.open(t)
		f.stage(t, item.Stake{Type: "DIAMOND", Quantity: 1})
		return f
	}

	t.Run("first call never mutates", func(t *testing.T) {
		f := setup(t)
		res, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmationRequired, res.Outcome)
		assert.Equal(t, f.clock.Now().Add(10*time.Second), res.Deadline)
		assert.Equal(t, "This sale is worth $100.00. Sell again within 10s to confirm.", res.Message)

		assert.True(t, f.ledger.DailySold(f.player).IsZero())
		assert.False(t, f.ledger.IsOnCooldown(f.player))
		view, _ := f.engine.Session(f.player)
		assert.Equal(t, PhasePendingConfirm, view.Phase)
		assert.Len(t, view.Staged, 1)
		assert.Empty(t, f.world.Commands())
	})

	t.Run("second call within window settles", func(t *testing.T) {
		f := setup(t)
		_, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)

		f.sched.Advance(9 * time.Second)
		res, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSettled, res.Outcome)
		assert.True(t, f.ledger.DailySold(f.player).Equal(dec("100")))
		view, _ := f.engine.Session(f.player)
		assert.Equal(t, PhaseStaging, view.Phase)
	})

	t.Run("call after window is a fresh first call", func(t *testing.T) {
		f := setup(t)
		_, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)

		f.sched.Advance(10 * time.Second)
		view, _ := f.engine.Session(f.player)
		assert.Equal(t, PhaseStaging, view.Phase, "expiry task resets the pending flag")

		res, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmationRequired, res.Outcome)
		assert.True(t, f.ledger.DailySold(f.player).IsZero())
	})

	t.Run("changing the stake clears the confirmation", func(t *testing.T) {
		f := setup(t)
		f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 1})
		_, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)

		f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 1})
		res, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmationRequired, res.Outcome)
	})

	t.Run("below threshold settles immediately", func(t *testing.T) {
		f := newFixture(t, nil)
		f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 19})
		f.open(t)
		f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 19})
		res, err := f.engine.AttemptSettle(f.player, false)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSettled, res.Outcome)
	})
}

func TestSettleAndClose(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 1})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 1})

	_, err := f.engine.AttemptSettle(f.player, true)
	require.NoError(t, err)
	_, ok := f.engine.Session(f.player)
	assert.False(t, ok)
	assert.Equal(t, 0, f.sched.Pending(), "preview task cancelled with the session")
}

func TestCategoryBulkSell(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.DailyLimit = dec("1000") })
	f.give(t,
		item.Stake{Type: "IRON_ORE", Quantity: 3},
		item.Stake{Type: "DIAMOND", Quantity: 1},
		item.Stake{Type: "WHEAT", Quantity: 10},
		item.Stake{Type: "BREAD", Quantity: 2},
	)
	f.open(t)

	msg, err := f.engine.SetFilter(f.player, "ORES")
	require.NoError(t, err)
	assert.Equal(t, "Showing ores items.", msg)

	res, err := f.engine.SellByCategory(f.player)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome, "bulk sell skips confirmation")
	assert.True(t, res.Quote.Total.Equal(dec("115")))
	assert.Equal(t, 4, res.Quote.Count)

	assert.Equal(t, 0, held(f.world, f.player, "IRON_ORE"))
	assert.Equal(t, 0, held(f.world, f.player, "DIAMOND"))
	assert.Equal(t, 10, held(f.world, f.player, "WHEAT"))
	assert.Equal(t, 2, held(f.world, f.player, "BREAD"))

	assert.True(t, f.ledger.DailySold(f.player).Equal(dec("115")))
	assert.False(t, f.ledger.IsOnCooldown(f.player), "bulk sell does not start a cooldown")
	require.Len(t, f.pub.sales, 1)
	assert.True(t, f.pub.sales[0].Bulk)
	assert.Equal(t, "ores", f.pub.sales[0].Category)

	_, err = f.engine.SellByCategory(f.player)
	assert.ErrorIs(t, err, apperrors.ErrNoSellableItems)
}

func TestCategoryBulkSellHonoursLimit(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "DIAMOND", Quantity: 2})
	f.open(t)
	_, err := f.engine.SetFilter(f.player, "ores")
	require.NoError(t, err)

	_, err = f.engine.SellByCategory(f.player)
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)
	assert.Equal(t, 2, held(f.world, f.player, "DIAMOND"))
}

func TestSetFilter(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t)
	_, err := f.engine.SetFilter(f.player, "weapons")
	assert.ErrorIs(t, err, apperrors.ErrInvalidItem)

	lines, err := f.engine.PriceInfo(f.player)
	require.NoError(t, err)
	assert.Len(t, lines, 5, "all sellable items while filter is all")

	_, err = f.engine.SetFilter(f.player, "food")
	require.NoError(t, err)
	lines, err = f.engine.PriceInfo(f.player)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "BREAD", lines[0].Item)

	g := newFixture(t, func(s *Settings) { s.CategoriesEnabled = false })
	g.open(t)
	_, err = g.engine.SetFilter(g.player, "food")
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)
}

func TestSlotsFull(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.SellSlots = 2 })
	f.give(t, item.Stake{Type: "WHEAT", Quantity: 3})
	f.open(t)

	f.stage(t, item.Stake{Type: "WHEAT", Quantity: 1})
	f.stage(t, item.Stake{Type: "WHEAT", Quantity: 1})
	_, err := f.engine.Stage(f.player, item.Stake{Type: "WHEAT", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrSlotsFull)
	assert.Equal(t, 1, held(f.world, f.player, "WHEAT"))
}

func TestStageMissingItem(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t)
	_, err := f.engine.Stage(f.player, item.Stake{Type: "DIAMOND", Quantity: 1})
	require.ErrorIs(t, err, apperrors.ErrInvalidItem)
	assert.Equal(t, "You do not have Diamond to offer.", err.Error())
}

func TestUnstageAndClose(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2}, item.Stake{Type: "WHEAT", Quantity: 4})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})
	f.stage(t, item.Stake{Type: "WHEAT", Quantity: 4})

	q, err := f.engine.Unstage(f.player, 0)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("2")))
	assert.Equal(t, 2, held(f.world, f.player, "IRON_ORE"))

	_, err = f.engine.Unstage(f.player, 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidItem)

	require.NoError(t, f.engine.Close(f.player))
	assert.Equal(t, 4, held(f.world, f.player, "WHEAT"))
	assert.ErrorIs(t, f.engine.Close(f.player), apperrors.ErrSessionNotFound)
}

func TestCloseDropsItemsWhenHoldingsFull(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})

	f.world.SetHoldingSlots(1)
	f.give(t, item.Stake{Type: "WHEAT", Quantity: 1})

	f.engine.Disconnect(f.player)
	drops := f.world.Drops()
	require.Len(t, drops, 1)
	assert.Equal(t, "IRON_ORE", drops[0].Stake.Type)
	assert.Equal(t, 2.0, drops[0].Location.X, "dropped at the player")
	assert.Equal(t, 0, f.engine.SessionCount())
}

func TestReopenClosesPreviousSession(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})

	f.open(t)
	view, _ := f.engine.Session(f.player)
	assert.Empty(t, view.Staged)
	assert.Equal(t, 2, held(f.world, f.player, "IRON_ORE"))
}

func TestLivePreview(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})

	f.sched.Advance(time.Second)
	assert.Equal(t, 2, f.pub.previewCount())
	assert.True(t, f.pub.previews[1].Quote.Total.Equal(dec("10")))

	require.NoError(t, f.engine.SetViewActive(f.player, false))
	f.sched.Advance(time.Second)
	assert.Equal(t, 2, f.pub.previewCount())
	assert.Equal(t, 1, f.sched.Pending(), "preview self-cancels, the idle timer stays")

	require.NoError(t, f.engine.SetViewActive(f.player, true))
	f.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, 3, f.pub.previewCount())

	f.world.Leave(f.player)
	f.sched.Advance(time.Second)
	assert.Equal(t, 3, f.pub.previewCount())
	assert.Equal(t, 1, f.sched.Pending())
}

func TestIdleSessionCloses(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.IdleTimeout = 5 * time.Minute })
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2}, item.Stake{Type: "WHEAT", Quantity: 1})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})

	f.sched.Advance(4 * time.Minute)
	f.stage(t, item.Stake{Type: "WHEAT", Quantity: 1})

	f.sched.Advance(4 * time.Minute)
	_, ok := f.engine.Session(f.player)
	require.True(t, ok, "staging pushed the deadline out")

	f.sched.Advance(time.Minute + time.Second)
	_, ok = f.engine.Session(f.player)
	assert.False(t, ok)
	assert.Equal(t, 2, held(f.world, f.player, "IRON_ORE"), "staged items go back on idle close")
	assert.Equal(t, 1, held(f.world, f.player, "WHEAT"))
	assert.Equal(t, 0, f.sched.Pending())
	assert.ErrorIs(t, f.engine.Close(f.player), apperrors.ErrSessionNotFound)
}

func TestIdleTimerDiesWithSession(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t)
	require.NoError(t, f.engine.Close(f.player))
	assert.Equal(t, 0, f.sched.Pending())

	f.open(t)
	f.sched.Advance(time.Minute)
	f.open(t)
	f.sched.Advance(4*time.Minute + 30*time.Second)
	_, ok := f.engine.Session(f.player)
	assert.True(t, ok, "the old session's timer must not close the new one")
}

func TestInteract(t *testing.T) {
	f := newFixture(t, nil)
	info, ok := f.reg.Get("bob")
	require.True(t, ok)

	got, err := f.engine.Interact(f.player, info.Token)
	require.NoError(t, err)
	require.NotNil(t, got.Session)
	assert.Equal(t, "bob", got.Session.NPCID)
	info, _ = f.reg.Get("bob")
	assert.Equal(t, 1, info.DailyInteractions)

	_, err = f.engine.Interact(f.player, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNPCNotFound)
}

func TestInteractWithDisabledNPCGreets(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Create(npc.Record{ID: "closed", Name: "Carl", Greeting: "&7{npc_name} is out fishing.", Enabled: false})
	require.NoError(t, err)

	got, err := f.engine.InteractWith(f.player, "closed")
	require.NoError(t, err)
	assert.Nil(t, got.Session)
	assert.Equal(t, "Carl is out fishing.", got.Greeting)
}

func TestNPCCommandsOverrideGlobal(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Create(npc.Record{
		ID:       "fence",
		Name:     "Fence",
		Enabled:  true,
		Commands: []string{"say {npc_name} paid {total_price} for {item_count} items ({npc_id})"},
	})
	require.NoError(t, err)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 2})
	_, err = f.engine.Open(f.player, "fence")
	require.NoError(t, err)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 2})

	_, err = f.engine.AttemptSettle(f.player, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"say Fence paid 10.00 for 2 items (fence)"}, f.world.Commands())
}

func TestComparePrices(t *testing.T) {
	f := newFixture(t, nil)
	cmp, err := f.engine.ComparePrices(nil)
	require.NoError(t, err)
	require.Len(t, cmp, 3)
	assert.Equal(t, "IRON_ORE", cmp[0].Item)
	require.Len(t, cmp[0].Offers, 1)
	assert.Equal(t, "bob", cmp[0].Offers[0].NPCID)

	g := newFixture(t, func(s *Settings) { s.ComparisonEnabled = false })
	_, err = g.engine.ComparePrices(nil)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)
}

func TestRemovedNPCClosesSession(t *testing.T) {
	f := newFixture(t, nil)
	f.give(t, item.Stake{Type: "IRON_ORE", Quantity: 1})
	f.open(t)
	f.stage(t, item.Stake{Type: "IRON_ORE", Quantity: 1})

	require.NoError(t, f.reg.Remove("bob"))
	_, err := f.engine.AttemptSettle(f.player, false)
	assert.ErrorIs(t, err, apperrors.ErrNPCNotFound)
	assert.Equal(t, 1, held(f.world, f.player, "IRON_ORE"))
	assert.Equal(t, 0, f.engine.SessionCount())
}
