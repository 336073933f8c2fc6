package item

import "github.com/shopspring/decimal"

// MinDurabilityModifier is the price floor applied to worn items.
var MinDurabilityModifier = decimal.RequireFromString("0.3")

// Stake is an item quantity and condition offered for sale.
type Stake struct {
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	MaxDurability int    `json:"max_durability,omitempty"`
	Damage        int    `json:"damage,omitempty"`
}

// Damageable reports whether the item type wears down.
func (s Stake) Damageable() bool {
	return s.MaxDurability > 0
}

// Remaining returns the remaining durability fraction in [0, 1].
// Non-damageable items are always whole.
func (s Stake) Remaining() decimal.Decimal {
	if !s.Damageable() || s.Damage <= 0 {
		return decimal.NewFromInt(1)
	}
	left := s.MaxDurability - s.Damage
	if left <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(left)).Div(decimal.NewFromInt(int64(s.MaxDurability)))
}

// DurabilityModifier scales the unit price by condition: 1.0 for intact or
// non-damageable items, otherwise the remaining fraction floored at 0.3.
func (s Stake) DurabilityModifier() decimal.Decimal {
	return decimal.Max(MinDurabilityModifier, s.Remaining())
}

// Value is unitPrice × quantity × durability modifier.
func (s Stake) Value(unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(s.Quantity))).Mul(s.DurabilityModifier())
}

// Valid reports whether the stake names an item and a positive quantity.
func (s Stake) Valid() bool {
	return s.Type != "" && s.Quantity > 0
}

// SameKind reports whether two stakes can merge into one holding slot.
func (s Stake) SameKind(o Stake) bool {
	return s.Type == o.Type && s.MaxDurability == o.MaxDurability && s.Damage == o.Damage
}
