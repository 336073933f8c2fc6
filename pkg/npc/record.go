// Package npc owns trader NPCs: their persistent records, their lifecycle in
// the world, and the periodic behaviours that run while they are present.
package npc

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// State is an NPC's lifecycle state.
type State int

const (
	Unspawned State = iota
	Spawning
	Present
	Invalid
	Removed
)

func (s State) String() string {
	switch s {
	case Unspawned:
		return "unspawned"
	case Spawning:
		return "spawning"
	case Present:
		return "present"
	case Invalid:
		return "invalid"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Profession is the villager trade skin.
type Profession string

const (
	ProfessionFarmer       Profession = "farmer"
	ProfessionLibrarian    Profession = "librarian"
	ProfessionCleric       Profession = "cleric"
	ProfessionArmorer      Profession = "armorer"
	ProfessionButcher      Profession = "butcher"
	ProfessionCartographer Profession = "cartographer"
	ProfessionFisherman    Profession = "fisherman"
	ProfessionFletcher     Profession = "fletcher"
	ProfessionMason        Profession = "mason"
	ProfessionShepherd     Profession = "shepherd"
	ProfessionToolsmith    Profession = "toolsmith"
	ProfessionWeaponsmith  Profession = "weaponsmith"
	ProfessionNitwit       Profession = "nitwit"
)

// DefaultProfession is used when configuration names an unknown profession.
const DefaultProfession = ProfessionFarmer

var professions = map[Profession]bool{
	ProfessionFarmer:       true,
	ProfessionLibrarian:    true,
	ProfessionCleric:       true,
	ProfessionArmorer:      true,
	ProfessionButcher:      true,
	ProfessionCartographer: true,
	ProfessionFisherman:    true,
	ProfessionFletcher:     true,
	ProfessionMason:        true,
	ProfessionShepherd:     true,
	ProfessionToolsmith:    true,
	ProfessionWeaponsmith:  true,
	ProfessionNitwit:       true,
}

// ParseProfession resolves a configured profession name. Unknown names
// return DefaultProfession and false.
func ParseProfession(s string) (Profession, bool) {
	p := Profession(strings.ToLower(strings.TrimSpace(s)))
	if professions[p] {
		return p, true
	}
	return DefaultProfession, false
}

// Record is the persistent part of an NPC.
type Record struct {
	ID                string                     `json:"id" yaml:"id"`
	Name              string                     `json:"name" yaml:"name"`
	Location          world.Location             `json:"location" yaml:"location"`
	Enabled           bool                       `json:"enabled" yaml:"enabled"`
	Kind              world.Kind                 `json:"kind" yaml:"kind"`
	Profession        Profession                 `json:"profession" yaml:"profession"`
	Greeting          string                     `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	Commands          []string                   `json:"commands,omitempty" yaml:"commands,omitempty"`
	CustomPrices      bool                       `json:"custom_prices" yaml:"custom_prices"`
	Prices            map[string]decimal.Decimal `json:"prices,omitempty" yaml:"prices,omitempty"`
	DailyInteractions int                        `json:"daily_interactions" yaml:"-"`
	LastInteraction   time.Time                  `json:"last_interaction,omitempty" yaml:"-"`
}

// ValidateID checks the id format: 1-32 letters, digits or underscores.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return apperrors.WithMetadata(apperrors.CodeInvalidNPCID,
			fmt.Sprintf("invalid npc id %q: use 1-32 letters, digits or underscores", id),
			map[string]string{apperrors.MetaNPC: id})
	}
	return nil
}

// normalize fills defaults and folds enum values to known members.
func (r *Record) normalize() {
	if r.Name == "" {
		r.Name = r.ID
	}
	r.Kind, _ = world.ParseKind(string(r.Kind))
	r.Profession, _ = ParseProfession(string(r.Profession))
}

func (r Record) clone() Record {
	out := r
	out.Commands = append([]string(nil), r.Commands...)
	if r.Prices != nil {
		out.Prices = make(map[string]decimal.Decimal, len(r.Prices))
		for k, v := range r.Prices {
			out.Prices[k] = v
		}
	}
	return out
}
