package engine

import (
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Point is a row and a column in native units.
type Point struct {
	Row    int
	Column int
}

// Edit describes one text change in native units.
type Edit struct {
	Start       int
	OldEnd      int
	NewEnd      int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Range is a document range in native units.
type Range struct {
	Start      int
	End        int
	StartPoint Point
	EndPoint   Point
}

type Token struct {
	Language lang.ID
	Kind     uint16
	Capture  uint16
	Length   int
}

// Highlights tiles [Start, requested end).
type Highlights struct {
	Start  int
	Tokens []Token
}

type FoldRange struct {
	Range
	Collapsed bool
	// Text is the label shown while collapsed; empty unless HasText.
	Text    string
	HasText bool
}

func toInternalPoint(p Point) sitter.Point {
	return sitter.Point{Row: uint(max(p.Row, 0)), Column: doctext.ToInternal(p.Column)}
}

func toNativePoint(p sitter.Point) Point {
	return Point{Row: int(p.Row), Column: doctext.ToNative(p.Column)}
}

func (e Edit) internal() sitter.InputEdit {
	return sitter.InputEdit{
		StartByte:      doctext.ToInternal(e.Start),
		OldEndByte:     doctext.ToInternal(e.OldEnd),
		NewEndByte:     doctext.ToInternal(e.NewEnd),
		StartPosition:  toInternalPoint(e.StartPoint),
		OldEndPosition: toInternalPoint(e.OldEndPoint),
		NewEndPosition: toInternalPoint(e.NewEndPoint),
	}
}

func nativeRange(r sitter.Range) Range {
	return Range{
		Start:      doctext.ToNative(r.StartByte),
		End:        doctext.ToNative(r.EndByte),
		StartPoint: toNativePoint(r.StartPoint),
		EndPoint:   toNativePoint(r.EndPoint),
	}
}

func internalSpan(start, end int) doctext.Span {
	return doctext.Span{Start: doctext.ToInternal(start), End: doctext.ToInternal(end)}
}
