// Package injection compiles injection queries and turns their matches into
// regions that should be parsed with another grammar.
package injection

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/predicate"
	"github.com/hcengineering/tree-sitter-offload/internal/query"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"gitlab.com/tozd/go/errors"
)

const (
	captureContent  = "injection.content"
	captureLanguage = "injection.language"
	captureMimetype = "injection.mimetype"

	propLanguage        = "injection.language"
	propCombined        = "injection.combined"
	propIncludeChildren = "injection.include-children"

	predicateOffset = "offset!"

	// Matches are searched this far (one native unit) around every changed
	// range so patterns anchored just outside an edit still fire.
	changedRangeSlack = doctext.Scale
)

var (
	ErrNoContentCapture = errors.Base("injection.content capture not found")
	ErrDuplicateCapture = errors.Base("duplicate injection capture")
)

type ErrorKind string

const (
	InvalidProperty  ErrorKind = "invalid property"
	LanguageConflict ErrorKind = "conflicting languages"
	InvalidPredicate ErrorKind = "invalid predicate"
)

// PatternError reports a malformed setting of a single pattern.
type PatternError struct {
	Pattern uint
	Kind    ErrorKind
	Detail  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s %q for pattern %d", e.Kind, e.Detail, e.Pattern)
}

type offset struct {
	start int
	end   int
}

func (o offset) apply(r sitter.Range) sitter.Range {
	r.StartByte = shift(r.StartByte, o.start)
	r.StartPoint.Column = shift(r.StartPoint.Column, o.start)
	r.EndByte = shift(r.EndByte, o.end)
	r.EndPoint.Column = shift(r.EndPoint.Column, o.end)
	if r.EndByte < r.StartByte {
		r.EndByte = r.StartByte
		r.EndPoint = r.StartPoint
	}
	return r
}

func shift(v uint, delta int) uint {
	if delta < 0 && uint(-delta) > v {
		return 0
	}
	return uint(int(v) + delta)
}

type pattern struct {
	language        string
	offsets         map[uint32]offset
	combined        bool
	includeChildren bool
}

// Match is one region to inject. Coordinates are local to the tree the
// query ran on.
type Match struct {
	Pattern         uint
	Language        lang.Ref
	Range           doctext.Span
	Included        []sitter.Range
	Combined        bool
	IncludeChildren bool
}

type Query struct {
	query      *sitter.Query
	predicates *predicate.Set
	content    uint32
	language   int
	mimetype   int
	patterns   []pattern
}

func New(language *sitter.Language, source string) (*Query, error) {
	q, preds, err := query.Compile(language, source)
	if err != nil {
		return nil, err
	}
	iq, err := build(q, preds)
	if err != nil {
		q.Close()
		return nil, err
	}
	return iq, nil
}

func build(q *sitter.Query, preds *predicate.Set) (*Query, error) {
	iq := &Query{query: q, predicates: preds, language: -1, mimetype: -1}
	content := -1
	for i, name := range q.CaptureNames() {
		var slot *int
		switch name {
		case captureContent:
			slot = &content
		case captureLanguage:
			slot = &iq.language
		case captureMimetype:
			slot = &iq.mimetype
		default:
			continue
		}
		if *slot != -1 {
			return nil, errors.Errorf("%w: @%s", ErrDuplicateCapture, name)
		}
		*slot = i
	}
	if content == -1 {
		return nil, ErrNoContentCapture
	}
	iq.content = uint32(content)

	iq.patterns = make([]pattern, q.PatternCount())
	for i := range iq.patterns {
		idx := uint(i)
		p := &iq.patterns[i]
		inline := iq.usesCapture(idx, iq.language) || iq.usesCapture(idx, iq.mimetype)
		for _, prop := range q.PropertySettings(idx) {
			switch prop.Key {
			case propLanguage:
				if prop.CaptureId != nil || prop.Value == nil {
					return nil, &PatternError{Pattern: idx, Kind: InvalidProperty, Detail: prop.Key}
				}
				if p.language != "" || inline {
					return nil, &PatternError{Pattern: idx, Kind: LanguageConflict, Detail: *prop.Value}
				}
				p.language = *prop.Value
			case propCombined, propIncludeChildren:
				if prop.CaptureId != nil || prop.Value != nil {
					return nil, &PatternError{Pattern: idx, Kind: InvalidProperty, Detail: prop.Key}
				}
				if prop.Key == propCombined {
					p.combined = true
				} else {
					p.includeChildren = true
				}
			}
		}
		for _, pred := range q.GeneralPredicates(idx) {
			if pred.Operator != predicateOffset {
				continue
			}
			capture, off, ok := parseOffset(pred.Args)
			if !ok {
				return nil, &PatternError{Pattern: idx, Kind: InvalidPredicate, Detail: pred.Operator}
			}
			if p.offsets == nil {
				p.offsets = make(map[uint32]offset)
			}
			p.offsets[capture] = off
		}
	}
	return iq, nil
}

func parseOffset(args []sitter.QueryPredicateArg) (uint32, offset, bool) {
	if len(args) != 3 || args[0].CaptureId == nil || args[1].String == nil || args[2].String == nil {
		return 0, offset{}, false
	}
	start, err := strconv.Atoi(*args[1].String)
	if err != nil {
		return 0, offset{}, false
	}
	end, err := strconv.Atoi(*args[2].String)
	if err != nil {
		return 0, offset{}, false
	}
	return uint32(*args[0].CaptureId), offset{start: start * doctext.Scale, end: end * doctext.Scale}, true
}

func (q *Query) usesCapture(pattern uint, capture int) bool {
	if capture < 0 {
		return false
	}
	quantifiers := q.query.CaptureQuantifiers(pattern)
	return capture < len(quantifiers) && quantifiers[capture] != sitter.CaptureQuantifierZero
}

func (q *Query) Close() { q.query.Close() }

// Collect runs the query over node within every changed span and returns the
// injections found there. text must return the document text between two
// offsets local to node's tree.
func (q *Query) Collect(node *sitter.Node, text func(start, end uint) string, changed []doctext.Span) []Match {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	nodeText := func(n *sitter.Node) string { return text(n.StartByte(), n.EndByte()) }

	var out []Match
	byRange := make(map[doctext.Span]int)
	for _, span := range changed {
		window := span.Expand(changedRangeSlack)
		cursor.SetByteRange(window.Start, window.End)
		matches := cursor.Matches(q.query, node, nil)
		for m := matches.Next(); m != nil; m = matches.Next() {
			if !q.predicates.Satisfies(m, nodeText) {
				continue
			}
			match, ok := q.matchFrom(m, text)
			if !ok {
				continue
			}
			if i, seen := byRange[match.Range]; seen {
				out[i] = match
				continue
			}
			byRange[match.Range] = len(out)
			out = append(out, match)
		}
	}
	return combine(out)
}

func (q *Query) matchFrom(m *sitter.QueryMatch, text func(start, end uint) string) (Match, bool) {
	info := &q.patterns[m.PatternIndex]
	var ranges []sitter.Range
	var inline lang.Ref
	hasInline := false
	for i := range m.Captures {
		capture := &m.Captures[i]
		r := capture.Node.Range()
		if off, ok := info.offsets[capture.Index]; ok {
			r = off.apply(r)
		}
		switch int(capture.Index) {
		case int(q.content):
			if r.EndByte <= r.StartByte {
				continue
			}
			if info.includeChildren {
				ranges = append(ranges, r)
			} else {
				ranges = append(ranges, excludeChildren(&capture.Node, r)...)
			}
		case q.language:
			inline, hasInline = lang.ByName(text(r.StartByte, r.EndByte)), true
		case q.mimetype:
			inline, hasInline = lang.ByMimetype(text(r.StartByte, r.EndByte)), true
		}
	}
	if len(ranges) == 0 {
		return Match{}, false
	}
	var language lang.Ref
	switch {
	case hasInline:
		language = inline
	case info.language != "":
		language = lang.ByName(info.language)
	default:
		return Match{}, false
	}
	slices.SortStableFunc(ranges, byStart)
	return Match{
		Pattern:         m.PatternIndex,
		Language:        language,
		Range:           doctext.Span{Start: ranges[0].StartByte, End: ranges[len(ranges)-1].EndByte},
		Included:        ranges,
		Combined:        info.combined,
		IncludeChildren: info.includeChildren,
	}, true
}

func byStart(a, b sitter.Range) int { return cmp.Compare(a.StartByte, b.StartByte) }

// excludeChildren splits r around the children of node.
func excludeChildren(node *sitter.Node, r sitter.Range) []sitter.Range {
	cursor := node.Walk()
	defer cursor.Close()
	if !cursor.GotoFirstChild() {
		return []sitter.Range{r}
	}
	var out []sitter.Range
	rest := r
	for {
		child := cursor.Node()
		start, end := child.StartByte(), child.EndByte()
		if start >= rest.EndByte {
			break
		}
		if end > rest.StartByte {
			if start > rest.StartByte {
				out = append(out, sitter.Range{
					StartByte:  rest.StartByte,
					EndByte:    start,
					StartPoint: rest.StartPoint,
					EndPoint:   child.StartPosition(),
				})
			}
			rest.StartByte = end
			rest.StartPoint = child.EndPosition()
		}
		if !cursor.GotoNextSibling() {
			break
		}
	}
	if rest.StartByte < rest.EndByte {
		out = append(out, rest)
	}
	return out
}

type combineKey struct {
	pattern  uint
	language lang.Ref
}

// combine folds the matches of every injection.combined pattern that target
// the same language into a single match holding all of their ranges.
func combine(matches []Match) []Match {
	out := matches[:0]
	groups := make(map[combineKey]int)
	for _, m := range matches {
		if !m.Combined {
			out = append(out, m)
			continue
		}
		key := combineKey{pattern: m.Pattern, language: m.Language}
		i, ok := groups[key]
		if !ok {
			groups[key] = len(out)
			m.Included = slices.Clone(m.Included)
			out = append(out, m)
			continue
		}
		g := &out[i]
		g.Range.Start = min(g.Range.Start, m.Range.Start)
		g.Range.End = max(g.Range.End, m.Range.End)
		g.Included = append(g.Included, m.Included...)
	}
	for i := range out {
		if out[i].Combined {
			out[i].Included = normalize(out[i].Included)
		}
	}
	return out
}

// normalize orders ranges and drops the ones overlapping an earlier range.
func normalize(ranges []sitter.Range) []sitter.Range {
	slices.SortStableFunc(ranges, byStart)
	out := ranges[:0]
	for _, r := range ranges {
		if len(out) > 0 && r.StartByte < out[len(out)-1].EndByte {
			continue
		}
		out = append(out, r)
	}
	return out
}
