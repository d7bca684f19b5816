package snapshot

import (
	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Entry is one region of the forest. Its tree, when parsed, is in local
// coordinates: byte 0 of the tree is ByteOffset in the document and point
// (0, 0) is PointOffset.
type Entry struct {
	Depth  int
	Parent int

	// Language is nil when the hint could not be resolved.
	Language *catalog.Language
	Hint     lang.Ref
	// Tree is nil for unparsed entries.
	Tree *sitter.Tree

	Range       doctext.Span
	ByteOffset  uint
	PointOffset sitter.Point
	Included    []sitter.Range
}

func (e *Entry) Parsed() bool { return e.Tree != nil }

func (e *Entry) LanguageID() lang.ID {
	if e.Language == nil {
		return lang.None
	}
	return e.Language.ID()
}

func (e *Entry) Root() *sitter.Node {
	if e.Tree == nil {
		return nil
	}
	return e.Tree.RootNode()
}

func (e *Entry) GlobalByte(local uint) uint { return local + e.ByteOffset }

// LocalByte maps a document offset into the tree, saturating at zero.
func (e *Entry) LocalByte(global uint) uint {
	if global < e.ByteOffset {
		return 0
	}
	return global - e.ByteOffset
}

func (e *Entry) GlobalPoint(p sitter.Point) sitter.Point {
	if p.Row == 0 {
		return sitter.Point{Row: e.PointOffset.Row, Column: e.PointOffset.Column + p.Column}
	}
	return sitter.Point{Row: e.PointOffset.Row + p.Row, Column: p.Column}
}

func (e *Entry) LocalPoint(p sitter.Point) sitter.Point {
	switch {
	case p.Row < e.PointOffset.Row:
		return sitter.Point{}
	case p.Row == e.PointOffset.Row:
		if p.Column < e.PointOffset.Column {
			return sitter.Point{}
		}
		return sitter.Point{Column: p.Column - e.PointOffset.Column}
	default:
		return sitter.Point{Row: p.Row - e.PointOffset.Row, Column: p.Column}
	}
}

func (e *Entry) GlobalRange(r sitter.Range) sitter.Range {
	return sitter.Range{
		StartByte:  e.GlobalByte(r.StartByte),
		EndByte:    e.GlobalByte(r.EndByte),
		StartPoint: e.GlobalPoint(r.StartPoint),
		EndPoint:   e.GlobalPoint(r.EndPoint),
	}
}

func (e *Entry) LocalRange(r sitter.Range) sitter.Range {
	return sitter.Range{
		StartByte:  e.LocalByte(r.StartByte),
		EndByte:    e.LocalByte(r.EndByte),
		StartPoint: e.LocalPoint(r.StartPoint),
		EndPoint:   e.LocalPoint(r.EndPoint),
	}
}

// Span returns the document span of a node of this entry's tree.
func (e *Entry) Span(n *sitter.Node) doctext.Span {
	return doctext.Span{Start: e.GlobalByte(n.StartByte()), End: e.GlobalByte(n.EndByte())}
}

// LocalSpan maps a document span into the tree, clamped to the entry.
func (e *Entry) LocalSpan(s doctext.Span) doctext.Span {
	s = s.Intersect(e.Range)
	return doctext.Span{Start: e.LocalByte(s.Start), End: e.LocalByte(s.End)}
}

// Text returns a function reading document text by tree-local offsets.
func (e *Entry) Text(text *doctext.Text) func(start, end uint) string {
	return func(start, end uint) string {
		return text.Slice(e.GlobalByte(start), e.GlobalByte(end))
	}
}

// NodeText reads the document text covered by a node of this entry's tree.
func (e *Entry) NodeText(text *doctext.Text) func(n *sitter.Node) string {
	return func(n *sitter.Node) string {
		return text.Slice(e.GlobalByte(n.StartByte()), e.GlobalByte(n.EndByte()))
	}
}
