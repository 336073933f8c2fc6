// Package world describes the collaborators the trading core needs from the
// host world: located objects, players and their holdings, and command
// dispatch. Memory is an in-process implementation.
package world

import (
	"math"

	"github.com/google/uuid"

	"github.com/jwebster45206/trader-engine/pkg/item"
)

// Handle is an opaque reference to a world-resident object. The world may
// invalidate it at any time.
type Handle uint64

// NoHandle is the zero handle; it is never valid.
const NoHandle Handle = 0

// Location is a point in a named world with an orientation.
type Location struct {
	World string  `json:"world" yaml:"world"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Z     float64 `json:"z" yaml:"z"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
}

// Distance returns the euclidean distance between two locations, or +Inf
// when they are in different worlds.
func (l Location) Distance(o Location) float64 {
	if l.World != o.World {
		return math.Inf(1)
	}
	dx, dy, dz := o.X-l.X, o.Y-l.Y, o.Z-l.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Offset returns l shifted by the given deltas.
func (l Location) Offset(dx, dy, dz float64) Location {
	l.X += dx
	l.Y += dy
	l.Z += dz
	return l
}

// FacingYaw returns the yaw in degrees that makes an object at l face target.
func (l Location) FacingYaw(target Location) float64 {
	dx := target.X - l.X
	dz := target.Z - l.Z
	return math.Atan2(-dx, dz) * 180 / math.Pi
}

// Player is a player reported by a proximity query.
type Player struct {
	ID       uuid.UUID
	Location Location
	Distance float64
}

// Service spawns and manipulates located objects.
type Service interface {
	Spawn(kind Kind, loc Location) (Handle, error)
	Remove(h Handle)
	Teleport(h Handle, loc Location)
	IsValid(h Handle) bool
	IdentityOf(h Handle) uuid.UUID
	NearestPlayers(loc Location, radius float64) []Player
	DispatchCommand(text string)
	DropItem(loc Location, stake item.Stake)
	SetLabel(h Handle, text string)
	EmitEffect(loc Location, effect Effect, count int, offset float64)
}

// Players exposes player presence and personal storage.
type Players interface {
	Holdings(id uuid.UUID) []item.Stake
	RemoveItem(id uuid.UUID, stake item.Stake) bool
	// AddItem returns false when the holdings have no room.
	AddItem(id uuid.UUID, stake item.Stake) bool
	Online(id uuid.UUID) bool
	Location(id uuid.UUID) (Location, bool)
}

// CommandSink receives dispatched side-effect commands.
type CommandSink interface {
	Dispatch(command string)
}

// CommandSinkFunc adapts a function to CommandSink.
type CommandSinkFunc func(command string)

func (f CommandSinkFunc) Dispatch(command string) { f(command) }
