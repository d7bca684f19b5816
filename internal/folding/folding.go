// Package folding collects fold and indent ranges from the fold and indent
// queries of every region of a snapshot.
package folding

import (
	"cmp"
	"slices"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/query"
	"github.com/hcengineering/tree-sitter-offload/internal/snapshot"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Range is in document coordinates. Next is the offset of whatever follows
// the spanned node; adjacent folds are merged on it.
type Range struct {
	Pattern    uint
	Language   lang.ID
	Span       doctext.Span
	StartPoint sitter.Point
	EndPoint   sitter.Point
	Next       uint
}

type Fold struct {
	Range
	Collapsed bool
	Text      string
	HasText   bool
}

// Folds returns the fold ranges of all regions intersecting span, with
// combined-lines runs merged and trailing newlines trimmed.
func Folds(snap *snapshot.Snapshot, text *doctext.Text, span doctext.Span, inner bool) []Fold {
	var out []Fold
	for i := range snap.Len() {
		entry := snap.Entry(i)
		if !entry.Parsed() {
			continue
		}
		q := entry.Language.Folds()
		if q == nil || !entry.Range.Intersects(span) {
			continue
		}
		var folds []Fold
		for _, r := range collect(entry, q, text, span, inner) {
			p := q.Pattern(r.Pattern)
			folds = append(folds, Fold{Range: r, Collapsed: p.Collapsed, Text: p.Text, HasText: p.HasText})
		}
		for _, f := range combineFolds(folds, q) {
			f.Range = trimNewline(f.Range, text)
			if f.Span.End > f.Span.Start {
				out = append(out, f)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b Fold) int { return compareRanges(a.Range, b.Range) })
	return out
}

// Indents returns the indent ranges of all regions intersecting span.
func Indents(snap *snapshot.Snapshot, text *doctext.Text, span doctext.Span, inner bool) []Range {
	var out []Range
	for i := range snap.Len() {
		entry := snap.Entry(i)
		if !entry.Parsed() {
			continue
		}
		q := entry.Language.Indents()
		if q == nil || !entry.Range.Intersects(span) {
			continue
		}
		out = append(out, collect(entry, q, text, span, inner)...)
	}
	slices.SortStableFunc(out, compareRanges)
	return out
}

func compareRanges(a, b Range) int {
	return cmp.Or(cmp.Compare(a.Span.Start, b.Span.Start), cmp.Compare(a.Span.End, b.Span.End))
}

type edge struct {
	offset uint
	point  sitter.Point
}

// collect runs q over the part of entry inside span.
func collect(entry *snapshot.Entry, q *query.Ranges, text *doctext.Text, span doctext.Span, inner bool) []Range {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	local := entry.LocalSpan(span)
	qc.SetByteRange(local.Start, local.End)
	nodeText := entry.NodeText(text)

	var out []Range
	matches := qc.Matches(q.Query, entry.Root(), nil)
	for m := matches.Next(); m != nil; m = matches.Next() {
		if !q.Predicates.Satisfies(m, nodeText) {
			continue
		}
		r, ok := fromMatch(m, q, inner || q.Pattern(m.PatternIndex).Inner)
		if !ok {
			continue
		}
		out = append(out, Range{
			Pattern:    m.PatternIndex,
			Language:   entry.LanguageID(),
			Span:       doctext.Span{Start: entry.GlobalByte(r.start.offset), End: entry.GlobalByte(r.end.offset)},
			StartPoint: entry.GlobalPoint(r.start.point),
			EndPoint:   entry.GlobalPoint(r.end.point),
			Next:       entry.GlobalByte(r.next),
		})
	}
	slices.SortStableFunc(out, compareRanges)
	return out
}

type localRange struct {
	start, end edge
	next       uint
}

func fromMatch(m *sitter.QueryMatch, q *query.Ranges, inner bool) (localRange, bool) {
	var r localRange
	found := false
	for _, n := range m.NodesForCaptureIndex(uint(q.Main)) {
		if !found || n.StartByte() < r.start.offset {
			r.start = edge{n.StartByte(), n.StartPosition()}
		}
		if !found || n.EndByte() > r.end.offset {
			r.end = edge{n.EndByte(), n.EndPosition()}
			r.next = n.EndByte()
			if sibling := n.NextSibling(); sibling != nil {
				r.next = sibling.StartByte()
			}
		}
		found = true
	}
	if !found {
		return r, false
	}
	for _, c := range m.Captures {
		switch int(c.Index) {
		case q.Start:
			if inner {
				r.start = edge{c.Node.EndByte(), c.Node.EndPosition()}
			} else {
				r.start = edge{c.Node.StartByte(), c.Node.StartPosition()}
			}
		case q.End:
			if inner {
				r.end = edge{c.Node.StartByte(), c.Node.StartPosition()}
				r.next = c.Node.EndByte()
			} else {
				r.end = edge{c.Node.EndByte(), c.Node.EndPosition()}
			}
		}
	}
	return r, r.end.offset > r.start.offset
}

// Combine merges b into a when b continues a: b starts where a's next node
// starts, both start in the same column, and b begins on a's last row or the
// row after it.
func Combine(a, b Range) (Range, bool) {
	if a.Pattern != b.Pattern || a.Next != b.Span.Start {
		return a, false
	}
	if a.StartPoint.Column != b.StartPoint.Column {
		return a, false
	}
	if b.StartPoint.Row < a.EndPoint.Row || b.StartPoint.Row > a.EndPoint.Row+1 {
		return a, false
	}
	a.Span.End = b.Span.End
	a.EndPoint = b.EndPoint
	a.Next = b.Next
	return a, true
}

func combineFolds(folds []Fold, q *query.Ranges) []Fold {
	out := make([]Fold, 0, len(folds))
	last := make(map[uint]int)
	for _, f := range folds {
		if q.Pattern(f.Pattern).Combined {
			if i, ok := last[f.Pattern]; ok {
				if merged, ok := Combine(out[i].Range, f.Range); ok {
					out[i].Range = merged
					continue
				}
			}
			last[f.Pattern] = len(out)
		}
		out = append(out, f)
	}
	return out
}

// trimNewline drops a final newline from r and moves the end point back to
// the end of the previous line.
func trimNewline(r Range, text *doctext.Text) Range {
	if r.Span.Len() < doctext.Scale {
		return r
	}
	end := r.Span.End - doctext.Scale
	if u, ok := text.UnitAt(end); !ok || u != '\n' {
		return r
	}
	lineStart := end
	for lineStart > r.Span.Start {
		u, _ := text.UnitAt(lineStart - doctext.Scale)
		if u == '\n' {
			break
		}
		lineStart -= doctext.Scale
	}
	r.Span.End = end
	if r.EndPoint.Row > 0 && r.EndPoint.Column == 0 {
		r.EndPoint.Row--
	}
	r.EndPoint.Column = end - lineStart
	if lineStart == r.Span.Start {
		r.EndPoint.Column += r.StartPoint.Column
	}
	return r
}
