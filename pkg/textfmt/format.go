package textfmt

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Legacy colour/format codes, either section-sign or ampersand prefixed.
var colorCodePattern = regexp.MustCompile(`(?i)[§&][0-9a-fk-orx]`)

// StripColorCodes removes formatting codes from configured text.
func StripColorCodes(text string) string {
	return colorCodePattern.ReplaceAllString(text, "")
}

// ItemDisplayName turns an item type identifier into a readable name,
// e.g. IRON_ORE -> "Iron Ore".
func ItemDisplayName(itemType string) string {
	words := strings.Fields(strings.ReplaceAll(strings.ToLower(itemType), "_", " "))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Money formats an amount with two decimals.
func Money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Tokens maps {token} names (without braces) to replacement values.
type Tokens map[string]string

// Render substitutes every {token} in template. Unknown tokens are left as-is.
func Render(template string, tokens Tokens) string {
	if len(tokens) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(tokens)*2)
	for k, v := range tokens {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Renderer renders named message templates with a fallback for missing keys.
type Renderer struct {
	templates map[string]string
	fallback  map[string]string
}

// NewRenderer creates a renderer over configured templates, consulting
// fallback for keys the configuration does not define.
func NewRenderer(templates, fallback map[string]string) *Renderer {
	r := &Renderer{
		templates: make(map[string]string, len(templates)),
		fallback:  fallback,
	}
	for k, v := range templates {
		r.templates[k] = v
	}
	return r
}

// Message renders the template registered under key. Colour codes are
// stripped since output goes to plain-text clients.
func (r *Renderer) Message(key string, tokens Tokens) string {
	tmpl, ok := r.templates[key]
	if !ok {
		tmpl, ok = r.fallback[key]
	}
	if !ok {
		return key
	}
	return StripColorCodes(Render(tmpl, tokens))
}
