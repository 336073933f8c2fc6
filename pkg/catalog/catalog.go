// Package catalog resolves unit prices for item types. Prices live in two
// tiers: a global table and per-NPC override tables. The catalog is an
// immutable snapshot swapped atomically, so readers never lock.
package catalog

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Category names with fixed meaning.
const (
	CategoryAll  = "all"
	CategoryMisc = "misc"
)

// Category is an ordered, named group of item types.
type Category struct {
	Name  string
	Items []string
}

// Override is an NPC's own price table, applied only while Enabled.
type Override struct {
	Enabled bool
	Prices  map[string]decimal.Decimal
}

// Table is the full configured price surface loaded in one piece.
type Table struct {
	Prices     map[string]decimal.Decimal
	Categories []Category
	Overrides  map[string]Override
}

// Line is one resolved item price.
type Line struct {
	Item  string          `json:"item"`
	Price decimal.Decimal `json:"price"`
}

type snapshot struct {
	prices     map[string]decimal.Decimal
	categories []Category
	index      map[string]string
	overrides  map[string]Override
	// global-tier resolutions, item type -> decimal.Decimal
	cache *sync.Map
}

// Catalog is safe for concurrent use.
type Catalog struct {
	// serializes writers; readers go through snap only
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// New creates a catalog from t.
func New(t Table) *Catalog {
	c := &Catalog{}
	c.snap.Store(build(t))
	return c
}

// NormalizeItem canonicalizes an item type identifier.
func NormalizeItem(itemType string) string {
	return strings.ToUpper(strings.TrimSpace(itemType))
}

func build(t Table) *snapshot {
	s := &snapshot{
		prices:    make(map[string]decimal.Decimal, len(t.Prices)),
		index:     make(map[string]string),
		overrides: make(map[string]Override, len(t.Overrides)),
		cache:     &sync.Map{},
	}
	for k, v := range t.Prices {
		s.prices[NormalizeItem(k)] = v
	}
	for _, cat := range t.Categories {
		name := strings.ToLower(strings.TrimSpace(cat.Name))
		if name == "" || name == CategoryAll {
			continue
		}
		items := make([]string, 0, len(cat.Items))
		for _, it := range cat.Items {
			it = NormalizeItem(it)
			items = append(items, it)
			// first configured category wins
			if _, seen := s.index[it]; !seen {
				s.index[it] = name
			}
		}
		s.categories = append(s.categories, Category{Name: name, Items: items})
	}
	for id, o := range t.Overrides {
		s.overrides[id] = copyOverride(o)
	}
	return s
}

func copyOverride(o Override) Override {
	out := Override{Enabled: o.Enabled, Prices: make(map[string]decimal.Decimal, len(o.Prices))}
	for k, v := range o.Prices {
		out.Prices[NormalizeItem(k)] = v
	}
	return out
}

// Reload replaces the whole catalog. The global cache starts empty.
func (c *Catalog) Reload(t Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Store(build(t))
}

// SetOverride installs or replaces an NPC's override table.
func (c *Catalog) SetOverride(npcID string, o Override) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.snap.Load()
	next := *cur
	next.overrides = make(map[string]Override, len(cur.overrides)+1)
	for k, v := range cur.overrides {
		next.overrides[k] = v
	}
	next.overrides[npcID] = copyOverride(o)
	c.snap.Store(&next)
}

// DropOverride removes an NPC's override table.
func (c *Catalog) DropOverride(npcID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.snap.Load()
	if _, ok := cur.overrides[npcID]; !ok {
		return
	}
	next := *cur
	next.overrides = make(map[string]Override, len(cur.overrides))
	for k, v := range cur.overrides {
		if k != npcID {
			next.overrides[k] = v
		}
	}
	c.snap.Store(&next)
}

// ResolvePrice returns the unit price npcID pays for itemType: the NPC's
// override when its custom pricing is enabled and the override is positive,
// else the global price, else zero (not sellable).
func (c *Catalog) ResolvePrice(npcID, itemType string) decimal.Decimal {
	s := c.snap.Load()
	itemType = NormalizeItem(itemType)
	if o, ok := s.overrides[npcID]; ok && o.Enabled {
		if p, ok := o.Prices[itemType]; ok && p.IsPositive() {
			return p
		}
	}
	return s.global(itemType)
}

func (s *snapshot) global(itemType string) decimal.Decimal {
	if v, ok := s.cache.Load(itemType); ok {
		return v.(decimal.Decimal)
	}
	p, ok := s.prices[itemType]
	if !ok || p.IsNegative() {
		p = decimal.Zero
	}
	s.cache.Store(itemType, p)
	return p
}

// HasPrice reports whether itemType has a positive global price.
func (c *Catalog) HasPrice(itemType string) bool {
	return c.snap.Load().global(NormalizeItem(itemType)).IsPositive()
}

// Category returns the first configured category containing itemType,
// or "misc".
func (c *Catalog) Category(itemType string) string {
	if name, ok := c.snap.Load().index[NormalizeItem(itemType)]; ok {
		return name
	}
	return CategoryMisc
}

// Categories lists configured category names in configuration order.
func (c *Catalog) Categories() []string {
	s := c.snap.Load()
	out := make([]string, 0, len(s.categories))
	for _, cat := range s.categories {
		out = append(out, cat.Name)
	}
	return out
}

// HasCategory reports whether name is "all", "misc", or a configured category.
func (c *Catalog) HasCategory(name string) bool {
	name = strings.ToLower(name)
	if name == CategoryAll || name == CategoryMisc {
		return true
	}
	for _, cat := range c.snap.Load().categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}

// CategoryItems returns the item types configured under name.
func (c *Catalog) CategoryItems(name string) []string {
	name = strings.ToLower(name)
	for _, cat := range c.snap.Load().categories {
		if cat.Name == name {
			return append([]string(nil), cat.Items...)
		}
	}
	return nil
}

// Matches reports whether itemType belongs to the filter category.
func (c *Catalog) Matches(filter, itemType string) bool {
	if filter == "" || strings.EqualFold(filter, CategoryAll) {
		return true
	}
	return c.Category(itemType) == strings.ToLower(filter)
}

// PriceList returns resolved prices for npcID, limited to the filter
// category, sorted by item type. Unsellable items are omitted.
func (c *Catalog) PriceList(npcID, filter string) []Line {
	s := c.snap.Load()
	seen := make(map[string]bool)
	var items []string
	add := func(it string) {
		if !seen[it] {
			seen[it] = true
			items = append(items, it)
		}
	}
	for it := range s.prices {
		add(it)
	}
	if o, ok := s.overrides[npcID]; ok && o.Enabled {
		for it := range o.Prices {
			add(it)
		}
	}
	sort.Strings(items)

	var out []Line
	for _, it := range items {
		if !c.Matches(filter, it) {
			continue
		}
		if p := c.ResolvePrice(npcID, it); p.IsPositive() {
			out = append(out, Line{Item: it, Price: p})
		}
	}
	return out
}

// SampleItems returns up to n price lines for display next to an NPC.
func (c *Catalog) SampleItems(npcID string, n int) []Line {
	lines := c.PriceList(npcID, CategoryAll)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

// Offer is one NPC's price for an item.
type Offer struct {
	NPCID string          `json:"npc_id"`
	Price decimal.Decimal `json:"price"`
}

// Comparison lists the offers for one item, best first.
type Comparison struct {
	Item   string  `json:"item"`
	Offers []Offer `json:"offers"`
}

// Compare resolves every item against every NPC. Offers are sorted by
// descending price, then NPC id; NPCs that do not buy an item are omitted.
func (c *Catalog) Compare(items, npcIDs []string) []Comparison {
	out := make([]Comparison, 0, len(items))
	for _, it := range items {
		it = NormalizeItem(it)
		cmp := Comparison{Item: it}
		for _, id := range npcIDs {
			if p := c.ResolvePrice(id, it); p.IsPositive() {
				cmp.Offers = append(cmp.Offers, Offer{NPCID: id, Price: p})
			}
		}
		sort.SliceStable(cmp.Offers, func(i, j int) bool {
			a, b := cmp.Offers[i], cmp.Offers[j]
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
			return a.NPCID < b.NPCID
		})
		out = append(out, cmp)
	}
	return out
}
