package render

import (
	"slices"
	"strings"

	chroma "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"gitlab.com/tozd/go/errors"
)

const DefaultTheme = "nord"

var ErrUnknownTheme = errors.Base("unknown theme")

// family groups the capture names sharing a color. The color comes from the
// first chroma token type the style sets, else from the text color moved by
// shade toward the background.
type family struct {
	name     string
	prefixes []string
	tokens   []chroma.TokenType
	shade    float64
}

var families = []family{
	{name: "keyword", prefixes: []string{"keyword", "conditional", "repeat", "include"}, tokens: []chroma.TokenType{chroma.Keyword}},
	{name: "type", prefixes: []string{"type", "constructor"}, tokens: []chroma.TokenType{chroma.KeywordType, chroma.NameClass}},
	{name: "function", prefixes: []string{"function", "method"}, tokens: []chroma.TokenType{chroma.NameFunction, chroma.Name}},
	{name: "variable", prefixes: []string{"variable", "parameter"}, tokens: []chroma.TokenType{chroma.NameVariable, chroma.Name}},
	{name: "property", prefixes: []string{"property", "field", "attribute"}, tokens: []chroma.TokenType{chroma.NameAttribute, chroma.NameVariable}},
	{name: "string", prefixes: []string{"string", "character"}, tokens: []chroma.TokenType{chroma.LiteralString}},
	{name: "number", prefixes: []string{"number", "float"}, tokens: []chroma.TokenType{chroma.LiteralNumber}},
	{name: "constant", prefixes: []string{"constant", "boolean"}, tokens: []chroma.TokenType{chroma.NameConstant, chroma.KeywordConstant}},
	{name: "comment", prefixes: []string{"comment"}, tokens: []chroma.TokenType{chroma.Comment}, shade: -0.35},
	{name: "operator", prefixes: []string{"operator"}, tokens: []chroma.TokenType{chroma.Operator}},
	{name: "punctuation", prefixes: []string{"punctuation", "delimiter"}, tokens: []chroma.TokenType{chroma.Punctuation}, shade: -0.15},
	{name: "tag", prefixes: []string{"tag"}, tokens: []chroma.TokenType{chroma.NameTag, chroma.Keyword}},
	{name: "error", prefixes: []string{"error"}, tokens: []chroma.TokenType{chroma.Error, chroma.GenericError}},
}

var themeAliases = map[string]string{
	"solarized": "solarized-dark",
	"one-dark":  "onedark",
}

var suggestedThemes = []string{"nord", "dracula", "monokai", "github", "github-dark", "solarized-dark", "solarized-light", "gruvbox", "onedark"}

// Palette holds one color per capture family of a chroma style.
type Palette struct {
	Name   string
	Text   string
	colors map[string]string
}

func LoadPalette(name string) (Palette, error) {
	requested := strings.TrimSpace(name)
	if requested == "" {
		requested = DefaultTheme
	}
	lookup := strings.ToLower(requested)
	if alias, ok := themeAliases[lookup]; ok {
		lookup = alias
	}
	style, ok := styles.Registry[lookup]
	if !ok {
		return Palette{}, errors.Errorf("%w %q. try one of: %s", ErrUnknownTheme, requested, strings.Join(themeHints(), ", "))
	}

	text := style.Get(chroma.Text).Colour
	if !text.IsSet() {
		text = chroma.MustParseColour("#D8DEE9")
	}
	p := Palette{Name: lookup, Text: text.String(), colors: make(map[string]string, len(families))}
	for _, f := range families {
		p.colors[f.name] = familyColour(style, f, text).String()
	}
	return p, nil
}

func familyColour(style *chroma.Style, f family, text chroma.Colour) chroma.Colour {
	for _, tt := range f.tokens {
		if c := style.Get(tt).Colour; c.IsSet() {
			return c
		}
	}
	if f.shade != 0 {
		return text.BrightenOrDarken(-f.shade)
	}
	return text
}

// themeHints lists the suggested themes this chroma build ships.
func themeHints() []string {
	return slices.DeleteFunc(slices.Clone(suggestedThemes), func(name string) bool {
		_, ok := styles.Registry[name]
		return !ok
	})
}

// familyOf maps a capture name such as "function.method" to its family.
// Any ".error" capture belongs to the error family.
func familyOf(capture string) string {
	if strings.HasSuffix(capture, ".error") {
		return "error"
	}
	head, _, _ := strings.Cut(capture, ".")
	for _, f := range families {
		if slices.Contains(f.prefixes, head) {
			return f.name
		}
	}
	return ""
}

// Color returns the color of a capture name, or the text color when the
// capture belongs to no family.
func (p Palette) Color(capture string) string {
	if c, ok := p.colors[familyOf(capture)]; ok {
		return c
	}
	return p.Text
}

func (p Palette) Style(capture string) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color(capture)))
	switch familyOf(capture) {
	case "comment":
		return style.Italic(true)
	case "operator":
		return style.Faint(true)
	case "error":
		return style.Bold(true)
	default:
		return style
	}
}
