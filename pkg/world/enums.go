package world

import "strings"

// Kind is the type of located object to spawn.
type Kind string

const (
	KindVillager        Kind = "villager"
	KindWanderingTrader Kind = "wandering_trader"
	KindPiglin          Kind = "piglin"
	KindArmorStand      Kind = "armor_stand"
	// KindDisplay is an invisible, label-only object used for display lines.
	KindDisplay Kind = "text_display"
)

// DefaultKind is used when configuration names an unknown kind.
const DefaultKind = KindVillager

var kinds = map[Kind]bool{
	KindVillager:        true,
	KindWanderingTrader: true,
	KindPiglin:          true,
	KindArmorStand:      true,
	KindDisplay:         true,
}

// ParseKind resolves a configured kind name. Unknown names return
// DefaultKind and false.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if kinds[k] {
		return k, true
	}
	return DefaultKind, false
}

// Effect is an ambient particle effect.
type Effect string

const (
	EffectHappyVillager Effect = "happy_villager"
	EffectHeart         Effect = "heart"
	EffectNote          Effect = "note"
	EffectEnchant       Effect = "enchant"
	EffectPortal        Effect = "portal"
	EffectFlame         Effect = "flame"
	EffectTotem         Effect = "totem_of_undying"
)

// DefaultEffect is used when configuration names an unknown effect.
const DefaultEffect = EffectHappyVillager

var effects = map[Effect]bool{
	EffectHappyVillager: true,
	EffectHeart:         true,
	EffectNote:          true,
	EffectEnchant:       true,
	EffectPortal:        true,
	EffectFlame:         true,
	EffectTotem:         true,
}

// ParseEffect resolves a configured effect name. Unknown names return
// DefaultEffect and false.
func ParseEffect(s string) (Effect, bool) {
	e := Effect(strings.ToLower(strings.TrimSpace(s)))
	if effects[e] {
		return e, true
	}
	return DefaultEffect, false
}
