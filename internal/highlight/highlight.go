// Package highlight turns a snapshot into a gap-free token stream where each
// token carries the innermost highlight capture of its language.
package highlight

import (
	"math"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/snapshot"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	// KindNone marks tokens that fill text between nodes.
	KindNone uint16 = math.MaxUint16
	// CaptureNone marks unhighlighted tokens.
	CaptureNone uint16 = math.MaxUint16
)

// Token covers Length internal units. Capture indexes the capture names of
// Language's highlight query.
type Token struct {
	Language lang.ID
	Kind     uint16
	Capture  uint16
	Length   uint
}

// Result tiles [Start, requested end) exactly. Start may lie left of the
// requested start so that the first token begins on a node boundary.
type Result struct {
	Start  uint
	Tokens []Token
}

// End returns the offset just past the last token.
func (r Result) End() uint {
	end := r.Start
	for _, t := range r.Tokens {
		end += t.Length
	}
	return end
}

type capture struct {
	index   uint16
	pattern uint
}

// rangeKey identifies a captured document range within one entry. Nodes
// sharing a range share its capture.
type rangeKey struct {
	entry int
	span  doctext.Span
}

type stackItem struct {
	language lang.ID
	node     snapshot.NodeKey
	capture  uint16
}

// Compute highlights span of text as parsed into snap.
func Compute(snap *snapshot.Snapshot, text *doctext.Text, span doctext.Span) Result {
	span.End = min(span.End, snap.TextLen())
	if span.Start >= span.End {
		return Result{Start: span.Start}
	}
	from := CoverStart(snap, span.Start)
	e := &emitter{
		cursor:   snap.Walk(),
		captures: collectCaptures(snap, text, doctext.Span{Start: from, End: span.End}),
		from:     from,
		to:       span.End,
		pos:      from,
	}
	defer e.cursor.Close()
	e.run()
	return Result{Start: from, Tokens: e.tokens}
}

// CoverStart returns the start of the token containing pos: the start of the
// deepest node holding pos, or the start of the gap between its children
// that holds pos.
func CoverStart(snap *snapshot.Snapshot, pos uint) uint {
	c := snap.Walk()
	defer c.Close()

	root := c.Span()
	switch {
	case pos < root.Start:
		return 0
	case pos >= root.End:
		return root.End
	}
	for {
		node := c.Span()
		if !c.GotoFirstChildForByte(pos) {
			if !c.GotoFirstChild() {
				return node.Start
			}
			last := node.Start
			for {
				last = max(last, c.Span().End)
				if !c.GotoNextSibling() {
					return last
				}
			}
		}
		child := c.Span()
		if child.Start > pos {
			prev := node.Start
			if c.GotoPreviousSibling() {
				prev = max(prev, c.Span().End)
			}
			return prev
		}
	}
}

// collectCaptures finds, per captured range, the visible capture of the
// lowest pattern matching it inside span.
func collectCaptures(snap *snapshot.Snapshot, text *doctext.Text, span doctext.Span) map[rangeKey]capture {
	out := make(map[rangeKey]capture)
	qc := sitter.NewQueryCursor()
	defer qc.Close()

	for i := range snap.Len() {
		entry := snap.Entry(i)
		if !entry.Parsed() || !entry.Range.Intersects(span) {
			continue
		}
		hl := entry.Language.Highlights()
		if hl == nil {
			continue
		}
		local := entry.LocalSpan(span)
		qc.SetByteRange(local.Start, local.End)
		nodeText := entry.NodeText(text)
		matches := qc.Matches(hl.Query, entry.Root(), nil)
		for m := matches.Next(); m != nil; m = matches.Next() {
			if !hl.Predicates.Satisfies(m, nodeText) {
				continue
			}
			for _, c := range m.Captures {
				if !hl.Visible(uint(c.Index)) {
					continue
				}
				key := rangeKey{entry: i, span: entry.Span(&c.Node)}
				if prev, ok := out[key]; ok && prev.pattern <= m.PatternIndex {
					continue
				}
				out[key] = capture{index: uint16(c.Index), pattern: m.PatternIndex}
			}
		}
	}
	return out
}

type emitter struct {
	cursor   *snapshot.Cursor
	captures map[rangeKey]capture
	stack    []stackItem
	from, to uint
	pos      uint
	tokens   []Token
}

func (e *emitter) run() {
	language := e.cursor.Entry().LanguageID()
	root := e.cursor.Span()
	e.gap(e.pos, root.Start, language)
	e.visit()
	e.gap(e.pos, e.to, language)
}

// visit emits the tokens of the current node that fall inside [from, to).
func (e *emitter) visit() {
	c := e.cursor
	span := c.Span()
	language := c.Entry().LanguageID()

	if hit, ok := e.captures[rangeKey{entry: c.EntryIndex(), span: span}]; ok {
		e.stack = append(e.stack, stackItem{language: language, node: c.Key(), capture: hit.index})
		defer func() { e.stack = e.stack[:len(e.stack)-1] }()
	}

	descended := false
	if span.Start < e.from {
		descended = c.GotoFirstChildForByte(e.from)
	}
	if !descended {
		descended = c.GotoFirstChild()
	}
	if !descended {
		e.emit(span.Start, span.End, Token{Language: language, Kind: c.Node().KindId()})
		return
	}

	pos := span.Start
	for {
		child := c.Span()
		if child.Start > pos {
			e.gap(pos, child.Start, language)
			pos = child.Start
		}
		if child.Start >= e.to {
			break
		}
		if child.End > e.from && child.End > child.Start {
			e.visit()
		}
		pos = max(pos, child.End)
		if !c.GotoNextSibling() {
			break
		}
	}
	c.GotoParent()
	e.gap(pos, span.End, language)
}

func (e *emitter) gap(start, end uint, language lang.ID) {
	e.emit(start, end, Token{Language: language, Kind: KindNone})
}

// emit appends a token for [start, end) clipped to what is still missing.
func (e *emitter) emit(start, end uint, t Token) {
	start = max(start, e.pos)
	end = min(end, e.to)
	if end <= start {
		return
	}
	if start > e.pos {
		e.gap(e.pos, start, t.Language)
	}
	t.Capture = CaptureNone
	if n := len(e.stack); n > 0 && e.stack[n-1].language == t.Language {
		t.Capture = e.stack[n-1].capture
	}
	t.Length = end - start
	e.pos = end

	if t.Kind == KindNone && len(e.tokens) > 0 {
		last := &e.tokens[len(e.tokens)-1]
		if last.Kind == KindNone && last.Language == t.Language && last.Capture == t.Capture {
			last.Length += t.Length
			return
		}
	}
	e.tokens = append(e.tokens, t)
}
