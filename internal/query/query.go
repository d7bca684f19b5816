// Package query compiles the per-language highlight, fold and indent queries
// together with their text predicates.
package query

import (
	"strings"

	"github.com/hcengineering/tree-sitter-offload/internal/predicate"

	"github.com/bits-and-blooms/bitset"
	sitter "github.com/tree-sitter/go-tree-sitter"
	"gitlab.com/tozd/go/errors"
)

const (
	MainFold   = "fold"
	MainIndent = "indent"

	hiddenPrefix = "_"
)

var ErrNoMainCapture = errors.Base("required capture not found")

// Compile builds a query and its predicate set.
func Compile(language *sitter.Language, source string) (*sitter.Query, *predicate.Set, error) {
	q, qerr := sitter.NewQuery(language, source)
	if qerr != nil {
		return nil, nil, errors.Errorf("compile query: %w", qerr)
	}
	preds, err := predicate.Parse(q, source)
	if err != nil {
		q.Close()
		return nil, nil, errors.Errorf("compile predicates: %w", err)
	}
	return q, preds, nil
}

type Highlights struct {
	Query      *sitter.Query
	Predicates *predicate.Set
	visible    *bitset.BitSet
}

func NewHighlights(language *sitter.Language, source string) (*Highlights, error) {
	q, preds, err := Compile(language, source)
	if err != nil {
		return nil, err
	}
	names := q.CaptureNames()
	visible := bitset.New(uint(len(names)))
	for i, name := range names {
		if !strings.HasPrefix(name, hiddenPrefix) {
			visible.Set(uint(i))
		}
	}
	return &Highlights{Query: q, Predicates: preds, visible: visible}, nil
}

// Visible reports whether a capture contributes to highlighting. Captures
// whose names start with an underscore only exist to feed predicates.
func (h *Highlights) Visible(capture uint) bool {
	return h.visible.Test(capture)
}

func (h *Highlights) CaptureNames() []string {
	return h.Query.CaptureNames()
}

func (h *Highlights) Close() { h.Query.Close() }

// Pattern holds the per-pattern properties of a ranges query.
type Pattern struct {
	Inner     bool
	Combined  bool
	Collapsed bool
	Text      string
	HasText   bool
}

type Ranges struct {
	Query      *sitter.Query
	Predicates *predicate.Set
	Main       uint32
	Start      int
	End        int
	Patterns   []Pattern
}

// NewRanges compiles a fold or indent query. main names the capture whose
// nodes define a range; the optional start and end captures override its
// edges.
func NewRanges(language *sitter.Language, source string, main string) (*Ranges, error) {
	q, preds, err := Compile(language, source)
	if err != nil {
		return nil, err
	}
	r := &Ranges{Query: q, Predicates: preds, Start: -1, End: -1}
	mainID := -1
	for i, name := range q.CaptureNames() {
		switch name {
		case main:
			mainID = i
		case "start":
			r.Start = i
		case "end":
			r.End = i
		}
	}
	if mainID == -1 {
		q.Close()
		return nil, errors.Errorf("%w: @%s", ErrNoMainCapture, main)
	}
	r.Main = uint32(mainID)

	r.Patterns = make([]Pattern, q.PatternCount())
	for i := range r.Patterns {
		p := &r.Patterns[i]
		for _, prop := range q.PropertySettings(uint(i)) {
			switch prop.Key {
			case "range.inner":
				p.Inner = true
			case "fold.combined-lines":
				p.Combined = true
			case "fold.collapsed":
				p.Collapsed = true
			case "fold.text":
				if prop.Value != nil {
					p.Text = *prop.Value
					p.HasText = true
				}
			}
		}
	}
	return r, nil
}

func (r *Ranges) Pattern(index uint) Pattern {
	if index >= uint(len(r.Patterns)) {
		return Pattern{}
	}
	return r.Patterns[index]
}

func (r *Ranges) Close() { r.Query.Close() }
