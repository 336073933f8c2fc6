package config

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/trader-engine/pkg/catalog"
	apperrors "github.com/jwebster45206/trader-engine/pkg/errors"
	"github.com/jwebster45206/trader-engine/pkg/npc"
)

// Validate reports structural problems that have no sensible default:
// bad or duplicate NPC ids and unnamed or duplicate categories.
func (c *TraderConfig) Validate() error {
	var errs []error

	seenCat := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		switch {
		case cat.Name == "":
			errs = append(errs, fmt.Errorf("categories[%d].name is required", i))
		case cat.Name == catalog.CategoryAll:
			errs = append(errs, fmt.Errorf("categories[%d].name %q is reserved", i, cat.Name))
		case seenCat[cat.Name]:
			errs = append(errs, fmt.Errorf("categories[%d].name %q is duplicated", i, cat.Name))
		}
		seenCat[cat.Name] = true
	}

	seenNPC := make(map[string]bool, len(c.NPCs))
	for i, n := range c.NPCs {
		if err := npc.ValidateID(n.ID); err != nil {
			errs = append(errs, fmt.Errorf("npcs[%d]: %w", i, err))
			continue
		}
		if seenNPC[n.ID] {
			errs = append(errs, fmt.Errorf("npcs[%d].id %q is duplicated", i, n.ID))
		}
		seenNPC[n.ID] = true
		for item, p := range n.Prices {
			if p < 0 {
				errs = append(errs, fmt.Errorf("npcs[%d].prices.%s must not be negative", i, item))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return apperrors.Wrap(apperrors.CodeInvalidConfig, "invalid trader config", errors.Join(errs...))
}
