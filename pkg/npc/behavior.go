package npc

import (
	"strconv"
	"time"

	"github.com/jwebster45206/trader-engine/pkg/textfmt"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// Behavior configures the periodic behaviours of present, enabled NPCs.
type Behavior struct {
	LookRadius float64

	EffectsEnabled bool
	Effect         world.Effect
	EffectInterval time.Duration
	EffectCount    int

	DisplaysEnabled bool
	DisplayInterval time.Duration
	DisplayLines    []string
	DisplayHeight   float64
	LineSpacing     float64

	PriceLines      bool
	PriceLineFormat string
	PriceLineMax    int
}

// DefaultDisplayLines are shown above an NPC when none are configured.
var DefaultDisplayLines = []string{
	"&6&l{npc_name}",
	"&7Right-click to sell items",
	"&eTrades today: {daily_count}",
}

func (b Behavior) withDefaults() Behavior {
	if b.LookRadius <= 0 {
		b.LookRadius = 5
	}
	if b.Effect == "" {
		b.Effect = world.DefaultEffect
	}
	if b.EffectInterval <= 0 {
		b.EffectInterval = 2 * time.Second
	}
	if b.EffectCount <= 0 {
		b.EffectCount = 3
	}
	if b.DisplayInterval <= 0 {
		b.DisplayInterval = 5 * time.Second
	}
	if len(b.DisplayLines) == 0 {
		b.DisplayLines = DefaultDisplayLines
	}
	if b.DisplayHeight <= 0 {
		b.DisplayHeight = 2.3
	}
	if b.LineSpacing <= 0 {
		b.LineSpacing = 0.25
	}
	if b.PriceLineFormat == "" {
		b.PriceLineFormat = "{item}: ${price}"
	}
	if b.PriceLineMax <= 0 {
		b.PriceLineMax = 3
	}
	return b
}

// Caller holds r.mu.
func (r *Registry) startBehaviorsLocked(n *NPC) {
	r.stopBehaviorsLocked(n)
	b := r.behavior
	id := n.ID

	if b.EffectsEnabled {
		n.effect = r.sched.Every("npc-effect:"+id, b.EffectInterval, func() { r.ambientEffect(id) })
	}
	if b.DisplaysEnabled {
		r.spawnDisplaysLocked(n)
		n.refresh = r.sched.Every("npc-display:"+id, b.DisplayInterval, func() { r.refreshDisplays(id) })
	}
}

// Caller holds r.mu.
func (r *Registry) stopBehaviorsLocked(n *NPC) {
	n.effect.Cancel()
	n.refresh.Cancel()
	n.effect, n.refresh = nil, nil
	for _, h := range n.displays {
		r.world.Remove(h)
	}
	n.displays = nil
}

func (r *Registry) ambientEffect(id string) {
	r.mu.Lock()
	defer r.unlock()
	n, ok := r.npcs[id]
	if !ok || n.state != Present || !n.Enabled {
		return
	}
	b := r.behavior
	r.world.EmitEffect(n.Location.Offset(0, 2, 0), b.Effect, b.EffectCount, 0.5)
}

func (r *Registry) refreshDisplays(id string) {
	r.mu.Lock()
	defer r.unlock()
	n, ok := r.npcs[id]
	if !ok || n.state != Present || !n.Enabled {
		return
	}
	lines := r.displayTextLocked(n)
	for _, h := range n.displays {
		if !r.world.IsValid(h) {
			r.spawnDisplaysLocked(n)
			return
		}
	}
	if len(lines) != len(n.displays) {
		r.spawnDisplaysLocked(n)
		return
	}
	for i, h := range n.displays {
		r.world.SetLabel(h, lines[i])
	}
}

// Caller holds r.mu.
func (r *Registry) spawnDisplaysLocked(n *NPC) {
	for _, h := range n.displays {
		r.world.Remove(h)
	}
	n.displays = n.displays[:0]
	b := r.behavior
	for i, text := range r.displayTextLocked(n) {
		loc := n.Location.Offset(0, b.DisplayHeight-float64(i)*b.LineSpacing, 0)
		h, err := r.world.Spawn(world.KindDisplay, loc)
		if err != nil {
			r.log.Warn("Display line spawn failed", "npc_id", n.ID, "line", i, "error", err)
			continue
		}
		r.world.SetLabel(h, text)
		n.displays = append(n.displays, h)
	}
}

// DisplayText renders the display lines for an NPC.
func (r *Registry) DisplayText(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.npcs[id]
	if !ok {
		return nil
	}
	return r.displayTextLocked(n)
}

// Caller holds r.mu.
func (r *Registry) displayTextLocked(n *NPC) []string {
	b := r.behavior
	tokens := textfmt.Tokens{
		"npc_name":    n.Name,
		"npc_id":      n.ID,
		"daily_count": strconv.Itoa(n.DailyInteractions),
		"world":       n.Location.World,
	}
	lines := make([]string, 0, len(b.DisplayLines)+b.PriceLineMax)
	for _, tmpl := range b.DisplayLines {
		lines = append(lines, textfmt.Render(tmpl, tokens))
	}
	if b.PriceLines && r.catalog != nil {
		for _, l := range r.catalog.SampleItems(n.ID, b.PriceLineMax) {
			lines = append(lines, textfmt.Render(b.PriceLineFormat, textfmt.Tokens{
				"item":  textfmt.ItemDisplayName(l.Item),
				"price": textfmt.Money(l.Price),
			}))
		}
	}
	return lines
}
