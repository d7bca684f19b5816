// Package snapshot builds immutable forests of syntax trees over one
// document: a root tree for the base language plus one tree per injected
// region, each linked to its parent.
package snapshot

import (
	"slices"

	"github.com/google/uuid"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Snapshot is immutable once built and may be read from many goroutines.
// Entry 0 is the root. Entries are ordered by (depth, start, end).
type Snapshot struct {
	id         uuid.UUID
	entries    []Entry
	children   [][]int
	length     uint
	rootReused bool
}

func newSnapshot(entries []Entry, length uint, rootReused bool) *Snapshot {
	s := &Snapshot{
		id:         uuid.New(),
		entries:    entries,
		children:   make([][]int, len(entries)),
		length:     length,
		rootReused: rootReused,
	}
	for i := 1; i < len(entries); i++ {
		p := entries[i].Parent
		s.children[p] = append(s.children[p], i)
	}
	for _, c := range s.children {
		slices.SortStableFunc(c, func(a, b int) int {
			return int(entries[a].Range.Start) - int(entries[b].Range.Start)
		})
	}
	return s
}

// ID is unique per built snapshot. Caches key on it.
func (s *Snapshot) ID() uuid.UUID { return s.id }

func (s *Snapshot) Len() int { return len(s.entries) }

func (s *Snapshot) Entry(i int) *Entry { return &s.entries[i] }

func (s *Snapshot) Root() *Entry { return &s.entries[0] }

// Children returns the indices of the entries injected directly into entry
// i, ordered by start offset.
func (s *Snapshot) Children(i int) []int { return s.children[i] }

// TextLen is the document length in internal units at build time.
func (s *Snapshot) TextLen() uint { return s.length }

// RootReused reports whether the root tree was reparsed incrementally from
// the previous snapshot.
func (s *Snapshot) RootReused() bool { return s.rootReused }

func (s *Snapshot) Close() {
	for i := range s.entries {
		if s.entries[i].Tree != nil {
			s.entries[i].Tree.Close()
			s.entries[i].Tree = nil
		}
	}
}

// Edited returns a snapshot holding only a copy of the root entry with edit
// applied to its tree. It is a diff basis for ChangedRanges and must be
// closed by the caller.
func (s *Snapshot) Edited(edit sitter.InputEdit) *Snapshot {
	root := s.entries[0]
	root.Included = slices.Clone(root.Included)
	if root.Tree != nil {
		root.Tree = root.Tree.Clone()
		root.Tree.Edit(&edit)
	}
	length := s.length
	if edit.OldEndByte <= length {
		length = length - edit.OldEndByte + edit.NewEndByte
	}
	return newSnapshot([]Entry{root}, length, false)
}

// ChangedRanges diffs the root trees of two snapshots. old must already
// carry the edit that produced next, see Edited.
func ChangedRanges(old, next *Snapshot) []doctext.Span {
	a, b := old.Root().Tree, next.Root().Tree
	if a == nil || b == nil {
		return []doctext.Span{{Start: 0, End: next.length}}
	}
	ranges := a.ChangedRanges(b)
	out := make([]doctext.Span, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, doctext.Span{Start: r.StartByte, End: r.EndByte})
	}
	return out
}
