package world

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/trader-engine/pkg/item"
)

// DefaultHoldingSlots is the number of distinct stacks a player can hold.
const DefaultHoldingSlots = 36

// ErrSpawnRejected is returned by Memory when a spawn has been set to fail.
var ErrSpawnRejected = errors.New("world rejected spawn")

type object struct {
	kind     Kind
	loc      Location
	identity uuid.UUID
	label    string
}

type playerState struct {
	loc      Location
	online   bool
	holdings []item.Stake
}

// Drop records an item dropped into the world.
type Drop struct {
	Location Location
	Stake    item.Stake
}

// EffectEmission records one ambient effect emission.
type EffectEmission struct {
	Location Location
	Effect   Effect
	Count    int
}

// Memory is an in-process world. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	nextHandle Handle
	objects    map[Handle]*object
	players    map[uuid.UUID]*playerState
	slots      int
	failSpawns int
	sink       CommandSink
	commands   []string
	drops      []Drop
	emissions  []EffectEmission
}

var (
	_ Service = (*Memory)(nil)
	_ Players = (*Memory)(nil)
)

// NewMemory creates an empty world. sink may be nil, in which case
// dispatched commands are only recorded.
func NewMemory(sink CommandSink) *Memory {
	return &Memory{
		objects: make(map[Handle]*object),
		players: make(map[uuid.UUID]*playerState),
		slots:   DefaultHoldingSlots,
		sink:    sink,
	}
}

// SetHoldingSlots changes the per-player stack capacity.
func (m *Memory) SetHoldingSlots(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = n
}

// FailNextSpawns makes the next n Spawn calls fail.
func (m *Memory) FailNextSpawns(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSpawns = n
}

func (m *Memory) Spawn(kind Kind, loc Location) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSpawns > 0 {
		m.failSpawns--
		return NoHandle, ErrSpawnRejected
	}
	m.nextHandle++
	h := m.nextHandle
	m.objects[h] = &object{kind: kind, loc: loc, identity: uuid.New()}
	return h, nil
}

func (m *Memory) Remove(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, h)
}

func (m *Memory) Teleport(h Handle, loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects[h]; ok {
		o.loc = loc
	}
}

func (m *Memory) IsValid(h Handle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[h]
	return ok
}

func (m *Memory) IdentityOf(h Handle) uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.objects[h]; ok {
		return o.identity
	}
	return uuid.Nil
}

func (m *Memory) SetLabel(h Handle, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects[h]; ok {
		o.label = text
	}
}

// Kill removes an object as if the world despawned it externally.
func (m *Memory) Kill(h Handle) {
	m.Remove(h)
}

// Recycle keeps the handle alive but gives it a new identity, as a world
// that reuses handles for unrelated objects would.
func (m *Memory) Recycle(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects[h]; ok {
		o.identity = uuid.New()
	}
}

// ObjectAt returns the location and label of a live object.
func (m *Memory) ObjectAt(h Handle) (Location, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[h]
	if !ok {
		return Location{}, "", false
	}
	return o.loc, o.label, true
}

// ObjectCount returns the number of live objects.
func (m *Memory) ObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// HandleFor resolves an identity token to its live handle.
func (m *Memory) HandleFor(identity uuid.UUID) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for h, o := range m.objects {
		if o.identity == identity {
			return h, true
		}
	}
	return NoHandle, false
}

func (m *Memory) NearestPlayers(loc Location, radius float64) []Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Player
	for id, p := range m.players {
		if !p.online {
			continue
		}
		d := loc.Distance(p.loc)
		if d <= radius {
			out = append(out, Player{ID: id, Location: p.loc, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *Memory) DispatchCommand(text string) {
	m.mu.Lock()
	m.commands = append(m.commands, text)
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.Dispatch(text)
	}
}

// Commands returns every dispatched command in order.
func (m *Memory) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.commands...)
}

func (m *Memory) DropItem(loc Location, stake item.Stake) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops = append(m.drops, Drop{Location: loc, Stake: stake})
}

// Drops returns every item dropped into the world.
func (m *Memory) Drops() []Drop {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Drop(nil), m.drops...)
}

func (m *Memory) EmitEffect(loc Location, effect Effect, count int, offset float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emissions = append(m.emissions, EffectEmission{Location: loc, Effect: effect, Count: count})
}

// Emissions returns every ambient effect emission.
func (m *Memory) Emissions() []EffectEmission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EffectEmission(nil), m.emissions...)
}

// Join puts a player online at loc, creating them if needed.
func (m *Memory) Join(id uuid.UUID, loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		p = &playerState{}
		m.players[id] = p
	}
	p.loc = loc
	p.online = true
}

// Leave takes a player offline. Holdings are kept.
func (m *Memory) Leave(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[id]; ok {
		p.online = false
	}
}

// Move relocates an online player.
func (m *Memory) Move(id uuid.UUID, loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[id]; ok {
		p.loc = loc
	}
}

func (m *Memory) Online(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return ok && p.online
}

func (m *Memory) Location(id uuid.UUID) (Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return Location{}, false
	}
	return p.loc, true
}

func (m *Memory) Holdings(id uuid.UUID) []item.Stake {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil
	}
	return append([]item.Stake(nil), p.holdings...)
}

func (m *Memory) AddItem(id uuid.UUID, stake item.Stake) bool {
	if !stake.Valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		p = &playerState{}
		m.players[id] = p
	}
	for i := range p.holdings {
		if p.holdings[i].SameKind(stake) {
			p.holdings[i].Quantity += stake.Quantity
			return true
		}
	}
	if len(p.holdings) >= m.slots {
		return false
	}
	p.holdings = append(p.holdings, stake)
	return true
}

// RemoveItem takes stake.Quantity of the matching stack. It removes nothing
// and returns false if the player does not hold enough.
func (m *Memory) RemoveItem(id uuid.UUID, stake item.Stake) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return false
	}
	for i := range p.holdings {
		h := &p.holdings[i]
		if !h.SameKind(stake) {
			continue
		}
		if h.Quantity < stake.Quantity {
			return false
		}
		h.Quantity -= stake.Quantity
		if h.Quantity == 0 {
			p.holdings = append(p.holdings[:i], p.holdings[i+1:]...)
		}
		return true
	}
	return false
}
