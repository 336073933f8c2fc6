// Package ledger tracks per-player cooldowns and sold amounts.
//
// Each account carries the calendar day its daily fields belong to. Every
// read or write first rolls a stale account over to today, so correctness
// never depends on the periodic sweep. Accounts are independent: two players
// never contend on the same lock.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwebster45206/trader-engine/pkg/clock"
)

// Snapshot is a point-in-time copy of one account.
type Snapshot struct {
	Player               uuid.UUID       `json:"player" db:"player"`
	Date                 string          `json:"date" db:"date"`
	DailySold            decimal.Decimal `json:"daily_sold" db:"daily_sold"`
	DailyTransactions    int             `json:"daily_transactions" db:"daily_transactions"`
	LifetimeSold         decimal.Decimal `json:"lifetime_sold" db:"lifetime_sold"`
	LifetimeTransactions int             `json:"lifetime_transactions" db:"lifetime_transactions"`
	LastSell             time.Time       `json:"last_sell" db:"last_sell"`
	BestSale             decimal.Decimal `json:"best_sale" db:"best_sale"`
	CooldownUntil        time.Time       `json:"cooldown_until" db:"cooldown_until"`
}

// Stats is a snapshot plus derived figures.
type Stats struct {
	Snapshot
	AverageSale       decimal.Decimal `json:"average_sale"`
	RemainingCooldown time.Duration   `json:"remaining_cooldown"`
}

type account struct {
	mu sync.Mutex
	Snapshot
}

// rollover zeroes daily fields when the account's day is not today.
// Caller holds a.mu.
func (a *account) rollover(today string) bool {
	if a.Date == today {
		return false
	}
	a.Date = today
	a.DailySold = decimal.Zero
	a.DailyTransactions = 0
	return true
}

// Caller holds a.mu.
func (a *account) cooling(now time.Time) bool {
	if a.CooldownUntil.IsZero() {
		return false
	}
	if !now.Before(a.CooldownUntil) {
		a.CooldownUntil = time.Time{}
		return false
	}
	return true
}

// Ledger is safe for concurrent use. It never returns errors; unknown
// players get a zeroed account on first touch.
type Ledger struct {
	clock    clock.Clock
	accounts sync.Map // uuid.UUID -> *account

	resetMu   sync.Mutex
	lastReset string
}

// New creates an empty ledger on clk.
func New(clk clock.Clock) *Ledger {
	return &Ledger{
		clock:     clk,
		lastReset: clock.Date(clk.Now()),
	}
}

// account returns the player's account, creating it on first use. An
// account is never replaced once stored, so callers holding it never write
// to a stale copy.
func (l *Ledger) account(id uuid.UUID) *account {
	v, ok := l.accounts.Load(id)
	if !ok {
		v, _ = l.accounts.LoadOrStore(id, &account{Snapshot: Snapshot{Player: id}})
	}
	return v.(*account)
}

// with runs fn on the player's account after rolling it over.
func (l *Ledger) with(id uuid.UUID, fn func(a *account, now time.Time)) {
	a := l.account(id)
	now := l.clock.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollover(clock.Date(now))
	fn(a, now)
}

// IsOnCooldown reports whether the player is cooling down. Expired
// cooldowns are cleared.
func (l *Ledger) IsOnCooldown(id uuid.UUID) bool {
	var on bool
	l.with(id, func(a *account, now time.Time) { on = a.cooling(now) })
	return on
}

// SetCooldown starts a cooldown of the given seconds. Non-positive values
// are ignored.
func (l *Ledger) SetCooldown(id uuid.UUID, seconds int) {
	if seconds <= 0 {
		return
	}
	l.with(id, func(a *account, now time.Time) {
		a.CooldownUntil = now.Add(time.Duration(seconds) * time.Second)
	})
}

// RemainingCooldown returns the time left on the player's cooldown.
func (l *Ledger) RemainingCooldown(id uuid.UUID) time.Duration {
	var left time.Duration
	l.with(id, func(a *account, now time.Time) {
		if a.cooling(now) {
			left = a.CooldownUntil.Sub(now)
		}
	})
	return left
}

// ClearCooldown ends any active cooldown.
func (l *Ledger) ClearCooldown(id uuid.UUID) {
	l.with(id, func(a *account, _ time.Time) { a.CooldownUntil = time.Time{} })
}

// DailySold returns today's sold amount.
func (l *Ledger) DailySold(id uuid.UUID) decimal.Decimal {
	var sold decimal.Decimal
	l.with(id, func(a *account, _ time.Time) { sold = a.DailySold })
	return sold
}

// DailyTransactions returns today's transaction count.
func (l *Ledger) DailyTransactions(id uuid.UUID) int {
	var n int
	l.with(id, func(a *account, _ time.Time) { n = a.DailyTransactions })
	return n
}

// AddSale records one settled sale.
func (l *Ledger) AddSale(id uuid.UUID, amount decimal.Decimal) {
	l.with(id, func(a *account, now time.Time) {
		a.DailySold = a.DailySold.Add(amount)
		a.DailyTransactions++
		a.LifetimeSold = a.LifetimeSold.Add(amount)
		a.LifetimeTransactions++
		a.LastSell = now
		if amount.GreaterThan(a.BestSale) {
			a.BestSale = amount
		}
	})
}

// CanSell reports whether the player may sell amount today: not cooling down
// and dailySold + amount within limit.
func (l *Ledger) CanSell(id uuid.UUID, amount, limit decimal.Decimal) bool {
	var ok bool
	l.with(id, func(a *account, now time.Time) {
		ok = !a.cooling(now) && a.DailySold.Add(amount).LessThanOrEqual(limit)
	})
	return ok
}

// RemainingLimit returns how much more the player may sell today.
func (l *Ledger) RemainingLimit(id uuid.UUID, limit decimal.Decimal) decimal.Decimal {
	var left decimal.Decimal
	l.with(id, func(a *account, _ time.Time) {
		left = decimal.Max(decimal.Zero, limit.Sub(a.DailySold))
	})
	return left
}

// SetDailySold overwrites today's sold amount.
func (l *Ledger) SetDailySold(id uuid.UUID, amount decimal.Decimal) {
	l.with(id, func(a *account, _ time.Time) { a.DailySold = amount })
}

// ResetPlayer zeroes everything recorded for the player.
func (l *Ledger) ResetPlayer(id uuid.UUID) {
	a := l.account(id)
	a.mu.Lock()
	a.Snapshot = Snapshot{Player: id}
	a.mu.Unlock()
}

// Stats returns the player's account with derived figures.
func (l *Ledger) Stats(id uuid.UUID) Stats {
	var s Stats
	l.with(id, func(a *account, now time.Time) { s = stats(a, now) })
	return s
}

// Caller holds a.mu.
func stats(a *account, now time.Time) Stats {
	s := Stats{Snapshot: a.Snapshot}
	if a.LifetimeTransactions > 0 {
		s.AverageSale = a.LifetimeSold.Div(decimal.NewFromInt(int64(a.LifetimeTransactions))).Round(2)
	}
	if a.cooling(now) {
		s.RemainingCooldown = a.CooldownUntil.Sub(now)
	}
	s.CooldownUntil = a.CooldownUntil
	return s
}

// AllStats returns every account, highest lifetime total first.
func (l *Ledger) AllStats() []Stats {
	now := l.clock.Now()
	today := clock.Date(now)
	var out []Stats
	l.accounts.Range(func(_, v any) bool {
		a := v.(*account)
		a.mu.Lock()
		a.rollover(today)
		out = append(out, stats(a, now))
		a.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LifetimeSold.Equal(out[j].LifetimeSold) {
			return out[i].LifetimeSold.GreaterThan(out[j].LifetimeSold)
		}
		return out[i].Player.String() < out[j].Player.String()
	})
	return out
}

// Sweep rolls every stale account over and drops expired cooldowns. It
// returns the number of accounts that were reset.
func (l *Ledger) Sweep() int {
	now := l.clock.Now()
	today := clock.Date(now)
	reset := 0
	l.accounts.Range(func(_, v any) bool {
		a := v.(*account)
		a.mu.Lock()
		if a.rollover(today) {
			reset++
		}
		a.cooling(now)
		a.mu.Unlock()
		return true
	})
	return reset
}

// SweepIfNewDay sweeps once per calendar day. It reports whether the day
// changed since the last call.
func (l *Ledger) SweepIfNewDay() bool {
	today := clock.Date(l.clock.Now())
	l.resetMu.Lock()
	if today == l.lastReset {
		l.resetMu.Unlock()
		return false
	}
	l.lastReset = today
	l.resetMu.Unlock()
	l.Sweep()
	return true
}

// LastReset returns the day of the last daily sweep.
func (l *Ledger) LastReset() string {
	l.resetMu.Lock()
	defer l.resetMu.Unlock()
	return l.lastReset
}

// SetLastReset restores the day of the last daily sweep. Empty dates are
// ignored.
func (l *Ledger) SetLastReset(date string) {
	if date == "" {
		return
	}
	l.resetMu.Lock()
	defer l.resetMu.Unlock()
	l.lastReset = date
}

// Snapshot copies every account without rolling it over.
func (l *Ledger) Snapshot() []Snapshot {
	var out []Snapshot
	l.accounts.Range(func(_, v any) bool {
		a := v.(*account)
		a.mu.Lock()
		out = append(out, a.Snapshot)
		a.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Player.String() < out[j].Player.String() })
	return out
}

// Restore loads persisted accounts, overwriting any in memory with the same
// player. Stale days roll over on first touch.
func (l *Ledger) Restore(snaps []Snapshot) {
	for _, s := range snaps {
		if s.Player == uuid.Nil {
			continue
		}
		a := l.account(s.Player)
		a.mu.Lock()
		a.Snapshot = s
		a.mu.Unlock()
	}
}

// Len returns the number of known accounts.
func (l *Ledger) Len() int {
	n := 0
	l.accounts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
