// Package doctext holds document text as UTF-16 code units.
//
// The parsing engine reads the units as UTF-16LE, so every offset it reports
// is a byte offset: one native unit spans two internal units.
package doctext

import "unicode/utf16"

// Scale is the number of internal units per native text unit.
const Scale = 2

// Text wraps the units without copying them.
type Text struct {
	units []uint16
}

func New(units []uint16) *Text {
	return &Text{units: units}
}

func FromString(s string) *Text {
	return New(utf16.Encode([]rune(s)))
}

func (t *Text) Units() []uint16 { return t.units }

// Len is the document length in internal units.
func (t *Text) Len() uint { return uint(len(t.units)) * Scale }

// Slice decodes the text between two internal offsets. Offsets are clamped to
// the document and rounded down to a unit boundary.
func (t *Text) Slice(start, end uint) string {
	s, e := t.unitIndex(start), t.unitIndex(end)
	if e <= s {
		return ""
	}
	return string(utf16.Decode(t.units[s:e]))
}

// UnitAt returns the native unit that starts at internal offset b.
func (t *Text) UnitAt(b uint) (uint16, bool) {
	i := b / Scale
	if i >= uint(len(t.units)) {
		return 0, false
	}
	return t.units[i], true
}

func (t *Text) unitIndex(b uint) int {
	i := int(b / Scale)
	if i > len(t.units) {
		return len(t.units)
	}
	return i
}

func (t *Text) String() string {
	return string(utf16.Decode(t.units))
}

// ToInternal converts a native offset into internal units.
func ToInternal(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n) * Scale
}

// ToNative converts an internal offset back into native units.
func ToNative(b uint) int {
	return int(b / Scale)
}
