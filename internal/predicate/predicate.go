// Package predicate evaluates the text-content predicates that the parsing
// engine leaves to its caller: contains?, not-contains?, any-contains? and
// any-not-contains?.
//
// It also takes over the engine's own text predicates (eq?, match?, any-of?)
// because the engine compares raw bytes, and documents are fed to it as
// little-endian UTF-16.
package predicate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TextFunc returns the document text covered by a node.
type TextFunc func(node *sitter.Node) string

// Error is a predicate compile error, located at the row of the pattern that
// declared it.
type Error struct {
	Row     uint
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("predicate error at row %d: %s", e.Row, e.Message)
}

type contains struct {
	capture  uint32
	literal  string
	positive bool
	matchAll bool
}

func (c contains) check(m *sitter.QueryMatch, text TextFunc) bool {
	for i := range m.Captures {
		capture := &m.Captures[i]
		if capture.Index != c.capture {
			continue
		}
		found := strings.Contains(text(&capture.Node), c.literal)
		if found != c.positive && c.matchAll {
			return false
		}
		if found == c.positive && !c.matchAll {
			return true
		}
	}
	return c.matchAll
}

func checkBuiltin(p sitter.TextPredicateCapture, m *sitter.QueryMatch, text TextFunc) bool {
	nodes := m.NodesForCaptureIndex(p.CaptureId)
	if p.Type == sitter.TextPredicateTypeEqCapture {
		others := m.NodesForCaptureIndex(p.Value.(uint))
		for len(nodes) > 0 && len(others) > 0 {
			equal := text(&nodes[0]) == text(&others[0])
			if equal != p.Positive && p.MatchAllNodes {
				return false
			}
			if equal == p.Positive && !p.MatchAllNodes {
				return true
			}
			nodes, others = nodes[1:], others[1:]
		}
		return len(nodes) == 0 && len(others) == 0
	}
	// any-of? holds only when every instance is in the set.
	matchAll := p.MatchAllNodes || p.Type == sitter.TextPredicateTypeAnyString
	for i := range nodes {
		value := text(&nodes[i])
		var found bool
		switch p.Type {
		case sitter.TextPredicateTypeEqString:
			found = value == p.Value.(string)
		case sitter.TextPredicateTypeMatchString:
			found = p.Value.(*regexp.Regexp).MatchString(value)
		case sitter.TextPredicateTypeAnyString:
			found = slices.Contains(p.Value.([]string), value)
		}
		if found != p.Positive && matchAll {
			return false
		}
		if found == p.Positive && !matchAll {
			return true
		}
	}
	return matchAll
}

// Set holds the compiled predicates of every pattern in a query.
type Set struct {
	patterns [][]contains
	builtin  [][]sitter.TextPredicateCapture
}

var operators = map[string]struct {
	positive bool
	matchAll bool
}{
	"contains?":         {positive: true, matchAll: true},
	"not-contains?":     {positive: false, matchAll: true},
	"any-contains?":     {positive: true, matchAll: false},
	"any-not-contains?": {positive: false, matchAll: false},
}

// Parse compiles the predicates of q. source is the query text q was built
// from and is only used to report rows. Operators this package does not know
// are skipped. The engine's text predicates move from q into the returned set,
// so matches of q must be filtered with Satisfies.
func Parse(q *sitter.Query, source string) (*Set, error) {
	count := q.PatternCount()
	set := &Set{
		patterns: make([][]contains, count),
		builtin:  make([][]sitter.TextPredicateCapture, count),
	}
	names := q.CaptureNames()
	for pattern := uint(0); pattern < count; pattern++ {
		row := patternRow(source, q.StartByteForPattern(pattern))
		for _, p := range q.GeneralPredicates(pattern) {
			op, ok := operators[p.Operator]
			if !ok {
				continue
			}
			if len(p.Args) != 2 {
				return nil, &Error{Row: row, Message: fmt.Sprintf(
					"wrong number of arguments to #%s predicate, expected 2, got %d", p.Operator, len(p.Args))}
			}
			first, second := p.Args[0], p.Args[1]
			if first.CaptureId == nil {
				return nil, &Error{Row: row, Message: fmt.Sprintf(
					"first argument to #%s predicate must be a capture name, got literal %q", p.Operator, deref(first.String))}
			}
			if second.CaptureId != nil {
				return nil, &Error{Row: row, Message: fmt.Sprintf(
					"second argument to #%s predicate must be a literal, got capture @%s", p.Operator, names[*second.CaptureId])}
			}
			set.patterns[pattern] = append(set.patterns[pattern], contains{
				capture:  uint32(*first.CaptureId),
				literal:  deref(second.String),
				positive: op.positive,
				matchAll: op.matchAll,
			})
		}
	}
	for i := range q.TextPredicates {
		set.builtin[i] = q.TextPredicates[i]
		q.TextPredicates[i] = nil
	}
	return set, nil
}

// Satisfies reports whether every compiled predicate of the match's pattern
// holds. A nil set accepts everything.
func (s *Set) Satisfies(m *sitter.QueryMatch, text TextFunc) bool {
	if s == nil || m.PatternIndex >= uint(len(s.patterns)) {
		return true
	}
	for _, p := range s.builtin[m.PatternIndex] {
		if !checkBuiltin(p, m, text) {
			return false
		}
	}
	for _, p := range s.patterns[m.PatternIndex] {
		if !p.check(m, text) {
			return false
		}
	}
	return true
}

// Len returns the number of compiled predicates across all patterns.
func (s *Set) Len() int {
	n := 0
	for i := range s.patterns {
		n += len(s.patterns[i]) + len(s.builtin[i])
	}
	return n
}

func patternRow(source string, start uint) uint {
	if start > uint(len(source)) {
		start = uint(len(source))
	}
	return uint(strings.Count(source[:start], "\n"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
