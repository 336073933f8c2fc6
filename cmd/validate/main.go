package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/trader-engine/internal/config"
	"github.com/jwebster45206/trader-engine/pkg/catalog"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <trader.yaml> [more.yaml...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &TraderValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		for _, w := range validator.warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type TraderValidator struct {
	errors   []string
	warnings []string
}

func (v *TraderValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("trader config must have .yaml or .yml extension: %s", filepath.Base(filename))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	// Unknown keys are typos; the loader ignores them so check here.
	var strict config.TraderConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(config.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&strict); err != nil {
		return fmt.Errorf("file %s failed strict YAML unmarshaling: %w", filename, err)
	}

	cfg, err := config.ParseTrader(data)
	if err != nil {
		return fmt.Errorf("file %s: %w", filename, err)
	}
	v.warnings = cfg.Warnings
	v.validateTrader(cfg)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *TraderValidator) validateTrader(cfg *config.TraderConfig) {
	table := cfg.Table()
	cat := catalog.New(table)

	for _, c := range cfg.Categories {
		for _, it := range c.Items {
			if !cat.HasPrice(it) {
				v.addWarning(fmt.Sprintf("category %s lists %s, which has no price", c.Name, it))
			}
		}
	}

	for _, cmd := range cfg.SellCommands {
		v.validateCommand("sell_commands", cmd)
	}
	for _, n := range cfg.NPCs {
		for _, cmd := range n.Commands {
			v.validateCommand("npc "+n.ID+" commands", cmd)
		}
		if n.CustomPrices && len(n.Prices) == 0 {
			v.addWarning(fmt.Sprintf("npc %s has custom_prices set but no prices", n.ID))
		}
	}
}

var tokenRegex = regexp.MustCompile(`\{([a-z_]+)\}`)

var commandTokens = map[string]bool{
	"player":      true,
	"total_price": true,
	"item_count":  true,
	"npc_name":    true,
	"npc_id":      true,
}

func (v *TraderValidator) validateCommand(field, cmd string) {
	if strings.TrimSpace(cmd) == "" {
		v.addError(fmt.Sprintf("%s has an empty command", field))
		return
	}
	for _, m := range tokenRegex.FindAllStringSubmatch(cmd, -1) {
		if !commandTokens[m[1]] {
			v.addError(fmt.Sprintf("%s uses unknown token {%s} in %q", field, m[1], cmd))
		}
	}
}

func (v *TraderValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *TraderValidator) addWarning(msg string) {
	v.warnings = append(v.warnings, msg)
}
