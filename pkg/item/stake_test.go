package item

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDurabilityModifier(t *testing.T) {
	tests := []struct {
		name  string
		stake Stake
		want  string
	}{
		{"non-damageable", Stake{Type: "IRON_ORE", Quantity: 1}, "1"},
		{"undamaged tool", Stake{Type: "IRON_PICKAXE", Quantity: 1, MaxDurability: 250}, "1"},
		{"half worn", Stake{Type: "IRON_PICKAXE", Quantity: 1, MaxDurability: 200, Damage: 100}, "0.5"},
		{"nearly broken floors at 0.3", Stake{Type: "IRON_PICKAXE", Quantity: 1, MaxDurability: 100, Damage: 95}, "0.3"},
		{"damage past max floors at 0.3", Stake{Type: "IRON_PICKAXE", Quantity: 1, MaxDurability: 100, Damage: 150}, "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.stake.DurabilityModifier()
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestDurabilityModifierRange(t *testing.T) {
	lo := decimal.RequireFromString("0.3")
	hi := decimal.NewFromInt(1)
	for maxDur := 1; maxDur <= 60; maxDur++ {
		for dmg := 0; dmg <= maxDur+5; dmg++ {
			m := Stake{Type: "X", Quantity: 1, MaxDurability: maxDur, Damage: dmg}.DurabilityModifier()
			if m.LessThan(lo) || m.GreaterThan(hi) {
				t.Fatalf("max=%d dmg=%d modifier %s out of range", maxDur, dmg, m)
			}
		}
	}
}

func TestValue(t *testing.T) {
	s := Stake{Type: "IRON_ORE", Quantity: 3}
	assert.Equal(t, "15", s.Value(decimal.NewFromFloat(5.0)).String())

	worn := Stake{Type: "IRON_SWORD", Quantity: 2, MaxDurability: 100, Damage: 50}
	assert.Equal(t, "10", worn.Value(decimal.NewFromInt(10)).String())
}
