// Package trade runs sell sessions: staging items with an NPC, pricing them,
// enforcing ledger quotas, confirming large sales and settling.
package trade

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwebster45206/trader-engine/pkg/catalog"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/item"
	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/scheduler"
	"github.com/jwebster45206/trader-engine/pkg/textfmt"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// SampleItems are compared when a price comparison names no items.
var SampleItems = []string{"IRON_ORE", "DIAMOND", "WHEAT"}

// Deps are the collaborators an Engine needs.
type Deps struct {
	Catalog   *catalog.Catalog
	Ledger    *ledger.Ledger
	Registry  *npc.Registry
	World     world.Service
	Players   world.Players
	Scheduler *scheduler.Scheduler
	Publisher Publisher
	Log       *slog.Logger
}

// Engine owns the session table. Its methods are meant to run on the
// scheduler goroutine; the lock keeps concurrent readers safe.
type Engine struct {
	catalog  *catalog.Catalog
	ledger   *ledger.Ledger
	registry *npc.Registry
	world    world.Service
	players  world.Players
	sched    *scheduler.Scheduler
	pub      Publisher
	log      *slog.Logger

	mu       sync.Mutex
	settings Settings
	msgs     *textfmt.Renderer
	sessions map[uuid.UUID]*Session
}

// NewEngine creates an engine with no open sessions.
func NewEngine(settings Settings, deps Deps) *Engine {
	if deps.Publisher == nil {
		deps.Publisher = NopPublisher{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	e := &Engine{
		catalog:  deps.Catalog,
		ledger:   deps.Ledger,
		registry: deps.Registry,
		world:    deps.World,
		players:  deps.Players,
		sched:    deps.Scheduler,
		pub:      deps.Publisher,
		log:      deps.Log,
		sessions: make(map[uuid.UUID]*Session),
	}
	e.UpdateSettings(settings)
	return e
}

// UpdateSettings replaces settings and message templates. Open sessions
// keep running under the new values.
func (e *Engine) UpdateSettings(s Settings) {
	s = s.normalized()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
	e.msgs = textfmt.NewRenderer(s.Messages, DefaultMessages)
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Interaction is the response to a player using an NPC.
type Interaction struct {
	NPCID    string       `json:"npc_id"`
	Greeting string       `json:"greeting,omitempty"`
	Session  *SessionView `json:"session,omitempty"`
}

// Interact handles a player using the world object with the given identity
// token.
func (e *Engine) Interact(player, token uuid.UUID) (Interaction, error) {
	info, ok := e.registry.ByToken(token)
	if !ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return Interaction{}, e.fail(apperrors.CodeNPCNotFound, MsgNPCNotFound,
			textfmt.Tokens{"npc_id": token.String()}, nil)
	}
	return e.InteractWith(player, info.ID)
}

// InteractWith handles a player using an NPC by id. A disabled NPC answers
// with its greeting; an enabled one opens a session.
func (e *Engine) InteractWith(player uuid.UUID, npcID string) (Interaction, error) {
	info, ok := e.registry.Get(npcID)
	if !ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return Interaction{}, e.fail(apperrors.CodeNPCNotFound, MsgNPCNotFound,
			textfmt.Tokens{"npc_id": npcID}, nil)
	}
	if !info.Enabled {
		e.mu.Lock()
		defer e.mu.Unlock()
		return Interaction{NPCID: npcID, Greeting: e.greeting(info)}, nil
	}
	e.registry.RecordInteraction(npcID)
	view, err := e.Open(player, npcID)
	if err != nil {
		return Interaction{NPCID: npcID}, err
	}
	return Interaction{NPCID: npcID, Session: &view}, nil
}

// Caller holds e.mu.
func (e *Engine) greeting(info npc.Info) string {
	tokens := npcTokens(info)
	if info.Greeting != "" {
		return textfmt.StripColorCodes(textfmt.Render(info.Greeting, tokens))
	}
	return e.msgs.Message(MsgGreeting, tokens)
}

// Open starts a session between player and npcID. A session the player
// already had is closed first.
func (e *Engine) Open(player uuid.UUID, npcID string) (SessionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.settings

	if !st.Enabled {
		return SessionView{}, e.fail(apperrors.CodeSystemDisabled, MsgSystemDisabled, nil, nil)
	}
	info, ok := e.registry.Get(npcID)
	if !ok {
		return SessionView{}, e.fail(apperrors.CodeNPCNotFound, MsgNPCNotFound, textfmt.Tokens{"npc_id": npcID}, nil)
	}
	tokens := npcTokens(info)
	if !info.Enabled {
		return SessionView{}, e.fail(apperrors.CodeNPCDisabled, MsgNPCDisabled, tokens, nil)
	}
	if st.LimitsEnabled {
		if err := e.checkCooldown(player, tokens); err != nil {
			return SessionView{}, err
		}
		if !e.ledger.RemainingLimit(player, st.DailyLimit).IsPositive() {
			tokens["daily_limit"] = textfmt.Money(st.DailyLimit)
			return SessionView{}, e.fail(apperrors.CodeLimitReached, MsgLimitReached, tokens,
				map[string]string{apperrors.MetaRemainingAmount: "0.00"})
		}
	}

	if old, ok := e.sessions[player]; ok {
		e.closeLocked(old, PhaseCancelled)
	}
	s := &Session{
		Player:     player,
		NPCID:      npcID,
		Filter:     catalog.CategoryAll,
		phase:      PhaseOpen,
		viewActive: true,
		opened:     e.sched.Now(),
	}
	s.lastActive = s.opened
	e.sessions[player] = s
	s.phase = PhaseStaging
	if st.PreviewEnabled {
		e.startPreviewLocked(s)
	}
	e.armIdleLocked(s, st.IdleTimeout)
	e.log.Debug("Sell session opened", "player", player.String(), "npc_id", npcID)
	return s.view(), nil
}

// Caller holds e.mu.
func (e *Engine) checkCooldown(player uuid.UUID, tokens textfmt.Tokens) error {
	left := e.ledger.RemainingCooldown(player)
	if left <= 0 {
		return nil
	}
	secs := strconv.Itoa(int(math.Ceil(left.Seconds())))
	tokens["cooldown"] = secs
	return e.fail(apperrors.CodeOnCooldown, MsgOnCooldown, tokens,
		map[string]string{apperrors.MetaRemainingSeconds: secs})
}

// Stage moves a stake from the player's holdings into the session's sell
// slots. Items the NPC does not buy are rejected without touching holdings.
func (e *Engine) Stage(player uuid.UUID, stake item.Stake) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, info, err := e.sessionLocked(player)
	if err != nil {
		return Quote{}, err
	}
	stake.Type = catalog.NormalizeItem(stake.Type)
	tokens := npcTokens(info)
	tokens["item"] = textfmt.ItemDisplayName(stake.Type)
	meta := map[string]string{apperrors.MetaItem: stake.Type}

	if !stake.Valid() || !e.catalog.ResolvePrice(s.NPCID, stake.Type).IsPositive() {
		return Quote{}, e.fail(apperrors.CodeInvalidItem, MsgInvalidItem, tokens, meta)
	}
	if len(s.staged) >= e.settings.SellSlots {
		return Quote{}, e.fail(apperrors.CodeSlotsFull, MsgSlotsFull, tokens, nil)
	}
	if !e.players.RemoveItem(player, stake) {
		return Quote{}, e.fail(apperrors.CodeInvalidItem, MsgMissingItem, tokens, meta)
	}
	s.staged = append(s.staged, stake)
	s.clearConfirm()
	s.last = e.quote(s.NPCID, s.staged)
	return s.last, nil
}

// Unstage returns the stake in slot index to the player's holdings.
func (e *Engine) Unstage(player uuid.UUID, index int) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, info, err := e.sessionLocked(player)
	if err != nil {
		return Quote{}, err
	}
	if index < 0 || index >= len(s.staged) {
		return Quote{}, apperrors.New(apperrors.CodeInvalidItem, fmt.Sprintf("no item in slot %d", index))
	}
	stake := s.staged[index]
	s.staged = append(s.staged[:index], s.staged[index+1:]...)
	e.returnItem(player, stake, info.Location)
	s.clearConfirm()
	s.last = e.quote(s.NPCID, s.staged)
	return s.last, nil
}

// ComputeTotal prices the player's staged items.
func (e *Engine) ComputeTotal(player uuid.UUID) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _, err := e.sessionLocked(player)
	if err != nil {
		return Quote{}, err
	}
	return e.quote(s.NPCID, s.staged), nil
}

// quote prices stakes at npcID: unit price × quantity × durability
// modifier. Stakes with no positive price are excluded.
func (e *Engine) quote(npcID string, stakes []item.Stake) Quote {
	q := Quote{Total: decimal.Zero}
	for _, s := range stakes {
		unit := e.catalog.ResolvePrice(npcID, s.Type)
		if !s.Valid() || !unit.IsPositive() {
			q.Excluded = append(q.Excluded, s)
			continue
		}
		mod := s.DurabilityModifier()
		v := s.Value(unit)
		q.Lines = append(q.Lines, QuoteLine{Stake: s, UnitPrice: unit, Modifier: mod, Value: v})
		q.Total = q.Total.Add(v)
		q.Count += s.Quantity
	}
	return q
}

// AttemptSettle settles the player's staged items. Sales at or above the
// confirmation threshold need a second call within the confirmation window;
// the first call only arms the confirmation. With closeAfter the session is
// closed once the sale settles.
func (e *Engine) AttemptSettle(player uuid.UUID, closeAfter bool) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.settings
	s, info, err := e.sessionLocked(player)
	if err != nil {
		return Result{}, err
	}
	if !st.Enabled {
		return Result{}, e.fail(apperrors.CodeSystemDisabled, MsgSystemDisabled, nil, nil)
	}

	q := e.quote(s.NPCID, s.staged)
	tokens := e.saleTokens(info, q)
	if !q.Total.IsPositive() {
		return Result{Quote: q}, e.fail(apperrors.CodeNoSellableItems, MsgNoSellable, tokens, nil)
	}
	if st.LimitsEnabled {
		if err := e.checkCooldown(player, tokens); err != nil {
			return Result{Quote: q}, err
		}
		if err := e.checkLimit(player, q, tokens); err != nil {
			return Result{Quote: q}, err
		}
	}

	now := e.sched.Now()
	if st.ConfirmEnabled && q.Total.GreaterThanOrEqual(st.ConfirmThreshold) {
		confirmed := s.phase == PhasePendingConfirm && now.Before(s.deadline)
		if !confirmed {
			s.clearConfirm()
			s.phase = PhasePendingConfirm
			s.deadline = now.Add(st.ConfirmWindow)
			sess := s
			s.confirm = e.sched.After("confirm:"+player.String(), st.ConfirmWindow, func() {
				e.expireConfirm(player, sess)
			})
			return Result{
				Outcome:  OutcomeConfirmationRequired,
				Quote:    q,
				Message:  e.msgs.Message(MsgConfirmRequired, tokens),
				Deadline: s.deadline,
			}, nil
		}
	}
	s.clearConfirm()

	var keep []item.Stake
	for _, stake := range s.staged {
		if !e.catalog.ResolvePrice(s.NPCID, stake.Type).IsPositive() {
			keep = append(keep, stake)
		}
	}
	s.staged = keep
	e.settleLocked(player, info, q, false, "")
	s.last = e.quote(s.NPCID, s.staged)

	res := Result{Outcome: OutcomeSettled, Quote: q, Message: e.msgs.Message(MsgSold, tokens)}
	if closeAfter {
		e.closeLocked(s, PhaseSettled)
	} else {
		s.phase = PhaseStaging
	}
	return res, nil
}

// Caller holds e.mu.
func (e *Engine) checkLimit(player uuid.UUID, q Quote, tokens textfmt.Tokens) error {
	limit := e.settings.DailyLimit
	if !e.ledger.DailySold(player).Add(q.Total).GreaterThan(limit) {
		return nil
	}
	left := textfmt.Money(e.ledger.RemainingLimit(player, limit))
	tokens["remaining"] = left
	return e.fail(apperrors.CodeLimitExceeded, MsgLimitExceeded, tokens,
		map[string]string{apperrors.MetaRemainingAmount: left})
}

func (e *Engine) expireConfirm(player uuid.UUID, sess *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[player] != sess || sess.phase != PhasePendingConfirm {
		return
	}
	if e.sched.Now().Before(sess.deadline) {
		return
	}
	sess.clearConfirm()
	e.log.Debug("Sale confirmation expired", "player", player.String(), "npc_id", sess.NPCID)
}

// settleLocked records the sale and fires the post-sale side effects.
// Caller holds e.mu.
func (e *Engine) settleLocked(player uuid.UUID, info npc.Info, q Quote, bulk bool, category string) {
	st := e.settings
	e.ledger.AddSale(player, q.Total)
	if !bulk {
		e.ledger.SetCooldown(player, st.CooldownSeconds)
	}

	commands := st.SellCommands
	if len(info.Commands) > 0 {
		commands = info.Commands
	}
	tokens := textfmt.Tokens{
		"player":      player.String(),
		"total_price": textfmt.Money(q.Total),
		"item_count":  strconv.Itoa(q.Count),
		"npc_name":    info.Name,
		"npc_id":      info.ID,
	}
	for _, c := range commands {
		e.world.DispatchCommand(strings.TrimPrefix(textfmt.Render(c, tokens), "/"))
	}
	if st.SuccessEffect {
		e.registry.PlayEffect(info.ID, world.EffectHappyVillager, 10)
	}
	e.pub.PublishSale(SaleEvent{
		Player:   player,
		NPCID:    info.ID,
		NPCName:  info.Name,
		Total:    q.Total,
		Count:    q.Count,
		Bulk:     bulk,
		Category: category,
		At:       e.sched.Now(),
	})
	e.log.Info("Sale settled",
		"player", player.String(),
		"npc_id", info.ID,
		"total", q.Total.String(),
		"items", q.Count,
		"bulk", bulk,
	)
}

// SetFilter selects the category shown and bulk-sold in the session.
func (e *Engine) SetFilter(player uuid.UUID, category string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, info, err := e.sessionLocked(player)
	if err != nil {
		return "", err
	}
	category = strings.ToLower(strings.TrimSpace(category))
	tokens := npcTokens(info)
	tokens["category"] = category
	if !e.settings.CategoriesEnabled {
		return "", e.fail(apperrors.CodeFeatureOff, MsgFeatureDisabled, tokens, nil)
	}
	if !e.catalog.HasCategory(category) {
		return "", e.fail(apperrors.CodeInvalidItem, MsgUnknownCategory, tokens, nil)
	}
	s.Filter = category
	return e.msgs.Message(MsgFilterSet, tokens), nil
}

// SellByCategory sells every held item matching the session filter. It
// skips the confirmation step and the cooldown but still honours the daily
// limit.
func (e *Engine) SellByCategory(player uuid.UUID) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.settings
	s, info, err := e.sessionLocked(player)
	if err != nil {
		return Result{}, err
	}
	if !st.Enabled {
		return Result{}, e.fail(apperrors.CodeSystemDisabled, MsgSystemDisabled, nil, nil)
	}
	if !st.CategorySellAll {
		return Result{}, e.fail(apperrors.CodeFeatureOff, MsgFeatureDisabled, nil, nil)
	}
	filter := s.Filter
	if filter == "" || !st.CategoriesEnabled {
		filter = catalog.CategoryAll
	}

	var matched []item.Stake
	for _, h := range e.players.Holdings(player) {
		if e.catalog.Matches(filter, h.Type) && e.catalog.ResolvePrice(s.NPCID, h.Type).IsPositive() {
			matched = append(matched, h)
		}
	}
	q := e.quote(s.NPCID, matched)
	tokens := e.saleTokens(info, q)
	tokens["category"] = filter
	if !q.Total.IsPositive() {
		return Result{Quote: q}, e.fail(apperrors.CodeNoSellableItems, MsgNoSellable, tokens, nil)
	}
	if st.LimitsEnabled {
		if err := e.checkLimit(player, q, tokens); err != nil {
			return Result{Quote: q}, err
		}
	}

	removed := make([]item.Stake, 0, len(matched))
	for _, m := range matched {
		if e.players.RemoveItem(player, m) {
			removed = append(removed, m)
		}
	}
	q = e.quote(s.NPCID, removed)
	if !q.Total.IsPositive() {
		return Result{Quote: q}, e.fail(apperrors.CodeNoSellableItems, MsgNoSellable, tokens, nil)
	}
	tokens = e.saleTokens(info, q)
	tokens["category"] = filter

	e.settleLocked(player, info, q, true, filter)
	return Result{Outcome: OutcomeSettled, Quote: q, Message: e.msgs.Message(MsgCategorySold, tokens)}, nil
}

// SetViewActive records whether the session is the player's active view.
// The live preview stops on its next tick once the view is inactive.
func (e *Engine) SetViewActive(player uuid.UUID, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _, err := e.sessionLocked(player)
	if err != nil {
		return err
	}
	s.viewActive = active
	if active && e.settings.PreviewEnabled && (s.preview == nil || s.preview.Cancelled()) {
		e.startPreviewLocked(s)
	}
	return nil
}

// Caller holds e.mu.
func (e *Engine) startPreviewLocked(s *Session) {
	player := s.Player
	var task *scheduler.Task
	task = e.sched.Every("preview:"+player.String(), e.settings.PreviewInterval, func() {
		e.refreshPreview(player, s, task)
	})
	s.preview = task
}

func (e *Engine) refreshPreview(player uuid.UUID, s *Session, task *scheduler.Task) {
	e.mu.Lock()
	if e.sessions[player] != s || !s.viewActive || !e.players.Online(player) {
		task.Cancel()
		e.mu.Unlock()
		return
	}
	if s.phase != PhaseStaging && s.phase != PhasePendingConfirm {
		e.mu.Unlock()
		return
	}
	s.last = e.quote(s.NPCID, s.staged)
	ev := PreviewEvent{Player: player, NPCID: s.NPCID, Quote: s.last, At: e.sched.Now()}
	e.mu.Unlock()
	e.pub.PublishPreview(ev)
}

// Caller holds e.mu.
func (e *Engine) armIdleLocked(s *Session, delay time.Duration) {
	player := s.Player
	s.idle = e.sched.After("idle:"+player.String(), delay, func() {
		e.expireIdle(player, s)
	})
}

// expireIdle closes the session once it has gone untouched for the idle
// timeout, or re-arms the timer for the time left.
func (e *Engine) expireIdle(player uuid.UUID, s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[player] != s {
		return
	}
	timeout := e.settings.IdleTimeout
	if left := s.lastActive.Add(timeout).Sub(e.sched.Now()); left > 0 {
		e.armIdleLocked(s, left)
		return
	}
	e.log.Info("Closing idle sell session", "player", player.String(), "npc_id", s.NPCID, "idle", timeout.String())
	e.closeLocked(s, PhaseCancelled)
}

// Close discards the session and gives staged items back.
func (e *Engine) Close(player uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[player]
	if !ok {
		return e.fail(apperrors.CodeSessionNotFound, MsgNoSession, nil, nil)
	}
	e.closeLocked(s, PhaseCancelled)
	return nil
}

// Disconnect closes the player's session if there is one.
func (e *Engine) Disconnect(player uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[player]; ok {
		e.closeLocked(s, PhaseCancelled)
	}
}

// closeLocked returns staged items (dropping them into the world when
// holdings are full), cancels the session's tasks and forgets it.
// Caller holds e.mu.
func (e *Engine) closeLocked(s *Session, final Phase) {
	s.cancelTasks()
	var fallback world.Location
	if info, ok := e.registry.Get(s.NPCID); ok {
		fallback = info.Location
	}
	for _, stake := range s.staged {
		e.returnItem(s.Player, stake, fallback)
	}
	s.staged = nil
	s.phase = final
	s.viewActive = false
	delete(e.sessions, s.Player)
	e.log.Debug("Sell session closed", "player", s.Player.String(), "npc_id", s.NPCID, "phase", final.String())
}

func (e *Engine) returnItem(player uuid.UUID, stake item.Stake, fallback world.Location) {
	if e.players.AddItem(player, stake) {
		return
	}
	loc, ok := e.players.Location(player)
	if !ok {
		loc = fallback
	}
	e.world.DropItem(loc, stake)
	e.log.Debug("Holdings full, dropped item", "player", player.String(), "item", stake.Type, "quantity", stake.Quantity)
}

// PriceInfo lists the NPC's prices for the session's filter.
func (e *Engine) PriceInfo(player uuid.UUID) ([]catalog.Line, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _, err := e.sessionLocked(player)
	if err != nil {
		return nil, err
	}
	filter := s.Filter
	if !e.settings.CategoriesEnabled {
		filter = catalog.CategoryAll
	}
	return e.catalog.PriceList(s.NPCID, filter), nil
}

// ComparePrices compares item prices across enabled NPCs. With no items
// it compares SampleItems.
func (e *Engine) ComparePrices(items []string) ([]catalog.Comparison, error) {
	e.mu.Lock()
	enabled := e.settings.ComparisonEnabled
	var err error
	if !enabled {
		err = e.fail(apperrors.CodeFeatureOff, MsgFeatureDisabled, nil, nil)
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = SampleItems
	}
	return e.catalog.Compare(items, e.registry.EnabledIDs()), nil
}

// Session returns a copy of the player's session.
func (e *Engine) Session(player uuid.UUID) (SessionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[player]
	if !ok {
		return SessionView{}, false
	}
	return s.view(), true
}

// SessionCount returns the number of open sessions.
func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Teardown closes every session.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.sessions {
		e.closeLocked(s, PhaseCancelled)
	}
}

// sessionLocked returns the player's session and marks it active.
// Caller holds e.mu.
func (e *Engine) sessionLocked(player uuid.UUID) (*Session, npc.Info, error) {
	s, ok := e.sessions[player]
	if !ok {
		return nil, npc.Info{}, e.fail(apperrors.CodeSessionNotFound, MsgNoSession, nil, nil)
	}
	s.lastActive = e.sched.Now()
	info, ok := e.registry.Get(s.NPCID)
	if !ok {
		e.closeLocked(s, PhaseCancelled)
		return nil, npc.Info{}, e.fail(apperrors.CodeNPCNotFound, MsgNPCNotFound, textfmt.Tokens{"npc_id": s.NPCID}, nil)
	}
	return s, info, nil
}

// Caller holds e.mu.
func (e *Engine) saleTokens(info npc.Info, q Quote) textfmt.Tokens {
	t := npcTokens(info)
	t["total_price"] = textfmt.Money(q.Total)
	t["item_count"] = strconv.Itoa(q.Count)
	t["daily_limit"] = textfmt.Money(e.settings.DailyLimit)
	t["confirm_seconds"] = strconv.Itoa(int(e.settings.ConfirmWindow / time.Second))
	return t
}

func npcTokens(info npc.Info) textfmt.Tokens {
	return textfmt.Tokens{"npc_name": info.Name, "npc_id": info.ID}
}

// Caller holds e.mu.
func (e *Engine) fail(code apperrors.Code, key string, tokens textfmt.Tokens, meta map[string]string) error {
	return apperrors.WithMetadata(code, e.msgs.Message(key, tokens), meta)
}
