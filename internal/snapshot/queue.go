package snapshot

import (
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// command asks for one region to be parsed. Ranges are in document
// coordinates.
type command struct {
	depth       int
	parent      int
	language    lang.Ref
	included    []sitter.Range
	span        doctext.Span
	byteOffset  uint
	pointOffset sitter.Point
	seq         int
}

// commandQueue is a min-heap over (depth, start, end). Parents and earlier
// siblings are therefore materialized before deeper or later regions.
type commandQueue []command

func (q commandQueue) Len() int { return len(q) }

func (q commandQueue) Less(i, j int) bool {
	a, b := &q[i], &q[j]
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	if a.span.Start != b.span.Start {
		return a.span.Start < b.span.Start
	}
	if a.span.End != b.span.End {
		return a.span.End < b.span.End
	}
	return a.seq < b.seq
}

func (q commandQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *commandQueue) Push(x any) { *q = append(*q, x.(command)) }

func (q *commandQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}
