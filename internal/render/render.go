// Package render turns engine highlights into styled terminal text.
package render

import (
	"strings"
	"unicode/utf16"

	"github.com/hcengineering/tree-sitter-offload/internal/engine"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Namer resolves a token capture to its name; "" means uncaptured.
type Namer func(language lang.ID, capture uint16) string

// Highlighted renders the covered part of text with one style per token.
// Lines are styled separately so multi-line tokens keep their layout.
func Highlighted(p Palette, text []uint16, hl engine.Highlights, name Namer) string {
	var b strings.Builder
	pos := hl.Start
	for _, tok := range hl.Tokens {
		end := min(pos+tok.Length, len(text))
		if pos >= end {
			pos += tok.Length
			continue
		}
		segment := string(utf16.Decode(text[pos:end]))
		pos += tok.Length

		capture := ""
		if name != nil {
			capture = name(tok.Language, tok.Capture)
		}
		if capture == "" {
			b.WriteString(segment)
			continue
		}
		style := p.Style(capture)
		for i, line := range strings.Split(segment, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	return b.String()
}

// Truncate flattens s to a single line no wider than maxWidth cells.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", "    ")

	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

func PadRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
