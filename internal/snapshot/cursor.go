package snapshot

import (
	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type frame struct {
	entry  int
	cursor *sitter.TreeCursor
}

// Cursor walks the forest as one tree. Moving down past a leaf enters an
// injected entry nested under it and moving up from an entry root returns to
// the host node.
type Cursor struct {
	snap  *Snapshot
	stack []frame
}

// NodeKey identifies a node across the forest.
type NodeKey struct {
	Entry int
	ID    uintptr
}

// Walk returns a cursor at the root node of the root entry.
func (s *Snapshot) Walk() *Cursor {
	return &Cursor{snap: s, stack: []frame{{entry: 0, cursor: s.entries[0].Tree.Walk()}}}
}

func (c *Cursor) Close() {
	for _, f := range c.stack {
		f.cursor.Close()
	}
	c.stack = nil
}

func (c *Cursor) Copy() *Cursor {
	out := &Cursor{snap: c.snap, stack: make([]frame, len(c.stack))}
	for i, f := range c.stack {
		out.stack[i] = frame{entry: f.entry, cursor: f.cursor.Copy()}
	}
	return out
}

func (c *Cursor) top() *frame { return &c.stack[len(c.stack)-1] }

func (c *Cursor) Node() *sitter.Node { return c.top().cursor.Node() }

func (c *Cursor) EntryIndex() int { return c.top().entry }

func (c *Cursor) Entry() *Entry { return &c.snap.entries[c.top().entry] }

func (c *Cursor) Language() *catalog.Language { return c.Entry().Language }

// Key identifies the current node.
func (c *Cursor) Key() NodeKey {
	return NodeKey{Entry: c.top().entry, ID: c.Node().Id()}
}

// Span is the current node's document span.
func (c *Cursor) Span() doctext.Span {
	return c.Entry().Span(c.Node())
}

// FrameDepth is the number of entries on the stack.
func (c *Cursor) FrameDepth() int { return len(c.stack) }

// GotoFirstChildForByte moves to the first child ending after pos, entering
// a nested entry when the current node has no such child.
func (c *Cursor) GotoFirstChildForByte(pos uint) bool {
	f := c.top()
	e := &c.snap.entries[f.entry]
	if pos >= e.ByteOffset {
		if f.cursor.GotoFirstChildForByte(uint32(e.LocalByte(pos))) != nil {
			return true
		}
	} else if f.cursor.GotoFirstChild() {
		return true
	}
	return c.enter(func(child *Entry) bool { return child.Range.End > pos })
}

func (c *Cursor) GotoFirstChild() bool {
	if c.top().cursor.GotoFirstChild() {
		return true
	}
	return c.enter(func(*Entry) bool { return true })
}

// enter pushes the first parsed child entry inside the current node that
// satisfies accept.
func (c *Cursor) enter(accept func(*Entry) bool) bool {
	f := c.top()
	e := &c.snap.entries[f.entry]
	span := e.Span(f.cursor.Node())
	for _, idx := range c.snap.children[f.entry] {
		child := &c.snap.entries[idx]
		if !child.Parsed() || !span.Contains(child.Range) || !accept(child) {
			continue
		}
		c.stack = append(c.stack, frame{entry: idx, cursor: child.Tree.Walk()})
		return true
	}
	return false
}

func (c *Cursor) GotoNextSibling() bool { return c.top().cursor.GotoNextSibling() }

func (c *Cursor) GotoPreviousSibling() bool { return c.top().cursor.GotoPreviousSibling() }

// GotoParent moves up within the current tree, or back to the host node when
// already at the root of an injected entry.
func (c *Cursor) GotoParent() bool {
	f := c.top()
	if f.cursor.GotoParent() {
		return true
	}
	if len(c.stack) == 1 {
		return false
	}
	f.cursor.Close()
	c.stack = c.stack[:len(c.stack)-1]
	return true
}
