package npc

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/trader-engine/pkg/catalog"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/scheduler"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// ErrSpawnInProgress is returned when a spawn is requested for an NPC that
// is already spawning.
var ErrSpawnInProgress = apperrors.ErrSpawnInProgress

// NPC is the runtime form of a record.
type NPC struct {
	Record
	state    State
	handle   world.Handle
	token    uuid.UUID
	facing   float64
	displays []world.Handle
	effect   *scheduler.Task
	refresh  *scheduler.Task
}

// Info is a read-only view of an NPC.
type Info struct {
	Record
	State State     `json:"state"`
	Token uuid.UUID `json:"token"`
}

// Event reports an NPC state change.
type Event struct {
	NPCID   string    `json:"npc_id"`
	State   State     `json:"state"`
	Enabled bool      `json:"enabled"`
	At      time.Time `json:"at"`
}

// Registry owns every NPC. Mutating methods are meant to run on the
// scheduler goroutine; the internal lock keeps concurrent readers safe.
type Registry struct {
	world    world.Service
	sched    *scheduler.Scheduler
	catalog  *catalog.Catalog
	log      *slog.Logger
	behavior Behavior

	mu       sync.Mutex
	npcs     map[string]*NPC
	byToken  map[uuid.UUID]string
	removed  map[string]bool
	dirty    bool
	pending  []Event
	onChange func(Event)
}

// NewRegistry creates an empty registry.
func NewRegistry(w world.Service, sched *scheduler.Scheduler, cat *catalog.Catalog, behavior Behavior, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		world:    w,
		sched:    sched,
		catalog:  cat,
		log:      log,
		behavior: behavior.withDefaults(),
		npcs:     make(map[string]*NPC),
		byToken:  make(map[uuid.UUID]string),
		removed:  make(map[string]bool),
	}
}

// OnChange registers the state change callback. It is called outside the
// registry lock.
func (r *Registry) OnChange(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// SetBehavior swaps behaviour settings. NPCs already present pick them up
// on their next spawn.
func (r *Registry) SetBehavior(b Behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behavior = b.withDefaults()
}

func (r *Registry) unlock() {
	events := r.pending
	r.pending = nil
	fn := r.onChange
	r.mu.Unlock()
	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}

// Caller holds r.mu.
func (r *Registry) setState(n *NPC, s State) {
	if n.state == s {
		return
	}
	n.state = s
	r.pending = append(r.pending, Event{NPCID: n.ID, State: s, Enabled: n.Enabled, At: r.sched.Now()})
}

// Create registers a new NPC and spawns it if enabled. A failed spawn does
// not fail the create; the validity sweep retries it.
func (r *Registry) Create(rec Record) (Info, error) {
	if err := ValidateID(rec.ID); err != nil {
		return Info{}, err
	}
	rec = rec.clone()
	rec.normalize()

	r.mu.Lock()
	if _, ok := r.npcs[rec.ID]; ok {
		r.unlock()
		return Info{}, apperrors.WithMetadata(apperrors.CodeNPCExists,
			fmt.Sprintf("npc %s already exists", rec.ID), map[string]string{apperrors.MetaNPC: rec.ID})
	}
	n := &NPC{Record: rec}
	r.npcs[rec.ID] = n
	delete(r.removed, rec.ID)
	r.dirty = true
	r.syncOverride(n)
	r.unlock()

	if rec.Enabled {
		if err := r.Spawn(rec.ID); err != nil {
			r.log.Warn("Spawn after create failed", "npc_id", rec.ID, "error", err)
		}
	}
	info, _ := r.Get(rec.ID)
	return info, nil
}

// Load registers persisted records without marking the registry dirty.
// Invalid records are skipped and reported together.
func (r *Registry) Load(recs []Record) error {
	var errs []error
	var spawn []string
	r.mu.Lock()
	for _, rec := range recs {
		if err := ValidateID(rec.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := r.npcs[rec.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicate npc %s", rec.ID))
			continue
		}
		rec = rec.clone()
		rec.normalize()
		n := &NPC{Record: rec}
		r.npcs[rec.ID] = n
		r.syncOverride(n)
		if rec.Enabled {
			spawn = append(spawn, rec.ID)
		}
	}
	r.unlock()

	for _, id := range spawn {
		if err := r.Spawn(id); err != nil {
			r.log.Warn("Spawn on load failed", "npc_id", id, "error", err)
		}
	}
	return errors.Join(errs...)
}

// Caller holds r.mu.
func (r *Registry) syncOverride(n *NPC) {
	if r.catalog == nil {
		return
	}
	if len(n.Prices) == 0 && !n.CustomPrices {
		r.catalog.DropOverride(n.ID)
		return
	}
	r.catalog.SetOverride(n.ID, catalog.Override{Enabled: n.CustomPrices, Prices: n.Prices})
}

// SyncOverrides pushes every NPC's price override into the catalog again.
// Call it after the catalog was reloaded.
func (r *Registry) SyncOverrides() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.npcs {
		r.syncOverride(n)
	}
}

// Remove tears the NPC down and releases its id. Removed is terminal.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	n, ok := r.npcs[id]
	if !ok {
		r.unlock()
		return notFound(id)
	}
	r.teardownLocked(n)
	r.setState(n, Removed)
	delete(r.npcs, id)
	r.removed[id] = true
	r.dirty = true
	if r.catalog != nil {
		r.catalog.DropOverride(id)
	}
	r.unlock()
	r.log.Info("NPC removed", "npc_id", id)
	return nil
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeNPCNotFound,
		fmt.Sprintf("npc %s not found", id), map[string]string{apperrors.MetaNPC: id})
}

// Spawn puts the NPC into the world. A spawn already in progress for the
// same id fails with ErrSpawnInProgress; a present NPC with a valid handle is
// left alone. On world failure the NPC returns to Unspawned.
func (r *Registry) Spawn(id string) error {
	r.mu.Lock()
	n, ok := r.npcs[id]
	if !ok {
		r.unlock()
		return notFound(id)
	}
	switch n.state {
	case Spawning:
		r.unlock()
		return ErrSpawnInProgress
	case Removed:
		r.unlock()
		return apperrors.New(apperrors.CodeInvalidLifecycle, "npc "+id+" was removed")
	case Present:
		if r.validLocked(n) {
			r.unlock()
			return nil
		}
		r.demoteLocked(n)
	}
	if n.state == Invalid {
		r.teardownLocked(n)
	}
	r.setState(n, Spawning)
	kind, loc := n.Kind, n.Location
	r.unlock()

	h, err := r.world.Spawn(kind, loc)

	r.mu.Lock()
	defer r.unlock()
	if cur, ok := r.npcs[id]; !ok || cur != n || n.state != Spawning {
		// removed while the world was busy
		if err == nil {
			r.world.Remove(h)
		}
		return apperrors.New(apperrors.CodeInvalidLifecycle, "npc "+id+" changed during spawn")
	}
	if err != nil {
		r.setState(n, Unspawned)
		r.log.Warn("NPC spawn failed", "npc_id", id, "error", err)
		return apperrors.Wrap(apperrors.CodeSpawnFailed, "spawn npc "+id, err)
	}

	n.handle = h
	n.token = r.world.IdentityOf(h)
	n.facing = loc.Yaw
	r.byToken[n.token] = id
	r.setState(n, Present)
	if n.Enabled {
		r.startBehaviorsLocked(n)
	}
	r.log.Debug("NPC spawned", "npc_id", id, "handle", uint64(h))
	return nil
}

// Despawn removes the NPC from the world but keeps its record as Unspawned.
func (r *Registry) Despawn(id string) error {
	r.mu.Lock()
	defer r.unlock()
	n, ok := r.npcs[id]
	if !ok {
		return notFound(id)
	}
	r.teardownLocked(n)
	if n.state != Removed {
		r.setState(n, Unspawned)
	}
	return nil
}

// Toggle flips the enabled flag. Disabling takes the NPC out of the world;
// enabling spawns it. The returned error reports a failed spawn only.
func (r *Registry) Toggle(id string) (bool, error) {
	r.mu.Lock()
	n, ok := r.npcs[id]
	if !ok {
		r.unlock()
		return false, notFound(id)
	}
	n.Enabled = !n.Enabled
	enabled := n.Enabled
	r.dirty = true
	if !enabled {
		r.teardownLocked(n)
		if n.state == Unspawned {
			r.pending = append(r.pending, Event{NPCID: id, State: n.state, At: r.sched.Now()})
		}
		r.setState(n, Unspawned)
	}
	r.unlock()

	r.log.Info("NPC toggled", "npc_id", id, "enabled", enabled)
	if enabled {
		return true, r.Spawn(id)
	}
	return false, nil
}

// Caller holds r.mu.
func (r *Registry) validLocked(n *NPC) bool {
	if n.handle == world.NoHandle || !r.world.IsValid(n.handle) {
		return false
	}
	return r.world.IdentityOf(n.handle) == n.token
}

// demoteLocked marks a present NPC invalid and stops its behaviours. A
// handle that now belongs to another object is not removed.
// Caller holds r.mu.
func (r *Registry) demoteLocked(n *NPC) {
	r.stopBehaviorsLocked(n)
	delete(r.byToken, n.token)
	n.handle = world.NoHandle
	n.token = uuid.Nil
	r.setState(n, Invalid)
}

// teardownLocked cancels tasks, removes displays and the world handle.
// Caller holds r.mu.
func (r *Registry) teardownLocked(n *NPC) {
	r.stopBehaviorsLocked(n)
	if n.handle != world.NoHandle {
		if r.validLocked(n) {
			r.world.Remove(n.handle)
		}
		delete(r.byToken, n.token)
		n.handle = world.NoHandle
		n.token = uuid.Nil
	}
}

// CheckValid compares the live handle's identity with the token captured
// at spawn and demotes the NPC to Invalid on mismatch.
func (r *Registry) CheckValid(id string) (State, error) {
	r.mu.Lock()
	defer r.unlock()
	n, ok := r.npcs[id]
	if !ok {
		return Removed, notFound(id)
	}
	if n.state == Present && !r.validLocked(n) {
		r.log.Warn("NPC lost world presence", "npc_id", id)
		r.demoteLocked(n)
	}
	return n.state, nil
}

// ValidateAll checks every NPC and respawns enabled ones that are not
// present. Failures are logged and the sweep continues. It returns the
// number of NPCs respawned.
func (r *Registry) ValidateAll() int {
	respawned := 0
	for _, id := range r.ids() {
		state, err := r.CheckValid(id)
		if err != nil {
			continue
		}
		if state != Invalid && state != Unspawned {
			continue
		}
		info, ok := r.Get(id)
		if !ok || !info.Enabled {
			continue
		}
		if err := r.Spawn(id); err != nil {
			r.log.Warn("Validity sweep respawn failed", "npc_id", id, "error", err)
			continue
		}
		respawned++
	}
	if respawned > 0 {
		r.log.Info("Validity sweep respawned NPCs", "count", respawned)
	}
	return respawned
}

// LookSweep turns each present, enabled NPC toward the nearest player
// within the look radius.
func (r *Registry) LookSweep() {
	r.mu.Lock()
	defer r.unlock()
	radius := r.behavior.LookRadius
	for _, n := range r.npcs {
		if n.state != Present || !n.Enabled {
			continue
		}
		players := r.world.NearestPlayers(n.Location, radius)
		if len(players) == 0 {
			continue
		}
		yaw := n.Location.FacingYaw(players[0].Location)
		if yaw == n.facing {
			continue
		}
		loc := n.Location
		loc.Yaw = yaw
		r.world.Teleport(n.handle, loc)
		n.facing = yaw
	}
}

// RecordInteraction counts an interaction. Only present, enabled NPCs
// count; the result reports whether the counter moved.
func (r *Registry) RecordInteraction(id string) bool {
	r.mu.Lock()
	defer r.unlock()
	n, ok := r.npcs[id]
	if !ok || n.state != Present || !n.Enabled {
		return false
	}
	n.DailyInteractions++
	n.LastInteraction = r.sched.Now()
	r.dirty = true
	return true
}

// ResetDaily zeroes every interaction counter.
func (r *Registry) ResetDaily() {
	r.mu.Lock()
	defer r.unlock()
	for _, n := range r.npcs {
		n.DailyInteractions = 0
	}
	r.dirty = true
}

// PlayEffect emits a one-off effect above a present NPC.
func (r *Registry) PlayEffect(id string, effect world.Effect, count int) {
	r.mu.Lock()
	defer r.unlock()
	n, ok := r.npcs[id]
	if !ok || n.state != Present {
		return
	}
	r.world.EmitEffect(n.Location.Offset(0, 1, 0), effect, count, 0.5)
}

// Get returns a view of one NPC.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.npcs[id]
	if !ok {
		return Info{}, false
	}
	return n.info(), true
}

// ByToken resolves the identity token of a world object to its NPC.
func (r *Registry) ByToken(token uuid.UUID) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byToken[token]
	if !ok {
		return Info{}, false
	}
	return r.npcs[id].info(), true
}

// List returns every NPC sorted by id.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.npcs))
	for _, n := range r.npcs {
		out = append(out, n.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EnabledIDs returns the ids of enabled NPCs, sorted.
func (r *Registry) EnabledIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, n := range r.npcs {
		if n.Enabled {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Records returns copies of every persistent record, sorted by id.
func (r *Registry) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.npcs))
	for _, n := range r.npcs {
		out = append(out, n.Record.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Removed returns the ids removed since the last SetRemoved, sorted. An
// explicit Create of the same id clears it.
func (r *Registry) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.removed))
	for id := range r.removed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsRemoved reports whether id was removed and not created again.
func (r *Registry) IsRemoved(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed[id]
}

// SetRemoved replaces the removed id set, typically from storage.
func (r *Registry) SetRemoved(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.npcs[id]; !ok {
			r.removed[id] = true
		}
	}
}

func (r *Registry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.npcs))
	for id := range r.npcs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dirty reports whether records changed since the last MarkClean.
func (r *Registry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// MarkClean clears the dirty flag.
func (r *Registry) MarkClean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}

// MarkDirty forces the next auto-save.
func (r *Registry) MarkDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
}

// Teardown takes every NPC out of the world. Records are kept.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.unlock()
	for _, n := range r.npcs {
		r.teardownLocked(n)
		r.setState(n, Unspawned)
	}
}

func (n *NPC) info() Info {
	return Info{Record: n.Record.clone(), State: n.state, Token: n.token}
}
