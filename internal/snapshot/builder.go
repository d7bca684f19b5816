package snapshot

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/charmbracelet/log"
	"gitlab.com/tozd/go/errors"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/logging"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	// readChunk bounds how many code units one parser read callback returns.
	readChunk = 1024
	// maxDepth stops runaway self-injection.
	maxDepth = 32
)

var ErrRootParse = errors.Base("root region could not be parsed")

type Builder struct {
	catalog *catalog.Catalog
	pool    *Pool
	logger  *log.Logger
}

type Option func(*Builder)

func WithPool(p *Pool) Option {
	return func(b *Builder) { b.pool = p }
}

func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

func NewBuilder(c *catalog.Catalog, opts ...Option) *Builder {
	b := &Builder{catalog: c}
	for _, opt := range opts {
		opt(b)
	}
	if b.pool == nil {
		b.pool = NewPool()
	}
	if b.logger == nil {
		b.logger = logging.Default()
	}
	return b
}

func (b *Builder) Pool() *Pool { return b.pool }

// Build parses text from scratch with base as the root language.
func (b *Builder) Build(base lang.ID, text *doctext.Text) (*Snapshot, error) {
	l, err := b.catalog.Lookup(base)
	if err != nil {
		return nil, err
	}
	s, _, err := b.build(l, text, nil, nil)
	return s, err
}

// Rebuild parses text after edit, reusing the root tree of old when the edit
// fits it. It returns the new snapshot and the document ranges that may have
// changed, always including the edited span itself. old stays valid.
func (b *Builder) Rebuild(text *doctext.Text, old *Snapshot, edit sitter.InputEdit) (*Snapshot, []sitter.Range, error) {
	root := old.Root()
	if root.Language == nil {
		return nil, nil, errors.WithStack(ErrRootParse)
	}
	return b.build(root.Language, text, old, &edit)
}

func (b *Builder) build(base *catalog.Language, text *doctext.Text, old *Snapshot, edit *sitter.InputEdit) (*Snapshot, []sitter.Range, error) {
	incremental := edit != nil
	queue := &commandQueue{}
	seq := 0
	heap.Push(queue, command{
		depth:    0,
		parent:   -1,
		language: lang.Known(base.ID()),
		span:     doctext.Span{Start: 0, End: text.Len()},
	})

	var changed []sitter.Range
	if incremental {
		changed = append(changed, editRange(edit))
	}

	var entries []Entry
	rootReused := false
	for queue.Len() > 0 {
		cmd := heap.Pop(queue).(command)
		entry := Entry{
			Depth:       cmd.depth,
			Parent:      cmd.parent,
			Hint:        cmd.language,
			Range:       cmd.span,
			ByteOffset:  cmd.byteOffset,
			PointOffset: cmd.pointOffset,
			Included:    cmd.included,
		}

		l, err := b.catalog.Resolve(cmd.language)
		if err != nil {
			if cmd.depth == 0 {
				closeEntries(entries)
				return nil, nil, err
			}
			b.logger.Debug("unresolved injection", "language", cmd.language, "start", cmd.span.Start, "end", cmd.span.End)
			entries = append(entries, entry)
			continue
		}
		entry.Language = l
		if cmd.depth > maxDepth {
			b.logger.Warn("injection too deep", "language", l.Name(), "depth", cmd.depth)
			entries = append(entries, entry)
			continue
		}

		var basis *sitter.Tree
		if cmd.depth == 0 && incremental {
			basis = reusableRoot(old, l, edit, cmd.span)
		}
		tree := b.parse(l, text, &entry, basis)
		if tree == nil {
			if basis != nil {
				basis.Close()
			}
			if cmd.depth == 0 {
				closeEntries(entries)
				return nil, nil, errors.Errorf("%w: %s", ErrRootParse, l.Name())
			}
			b.logger.Warn("parse failed", "language", l.Name(), "start", cmd.span.Start, "end", cmd.span.End)
			entries = append(entries, entry)
			continue
		}
		entry.Tree = tree

		if incremental {
			switch {
			case basis != nil:
				rootReused = true
				changed = append(changed, basis.ChangedRanges(tree)...)
				basis.Close()
			case len(entry.Included) > 0:
				changed = append(changed, entry.Included...)
			default:
				changed = append(changed, spanRange(text, cmd.span))
			}
		}

		idx := len(entries)
		if inj := l.Injections(); inj != nil {
			local := entry.LocalSpan(entry.Range)
			for _, m := range inj.Collect(tree.RootNode(), entry.Text(text), []doctext.Span{local}) {
				included := make([]sitter.Range, len(m.Included))
				for i, r := range m.Included {
					included[i] = entry.GlobalRange(r)
				}
				seq++
				heap.Push(queue, command{
					depth:       cmd.depth + 1,
					parent:      idx,
					language:    m.Language,
					included:    included,
					span:        doctext.Span{Start: entry.GlobalByte(m.Range.Start), End: entry.GlobalByte(m.Range.End)},
					byteOffset:  entry.GlobalByte(m.Range.Start),
					pointOffset: included[0].StartPoint,
					seq:         seq,
				})
			}
		}
		b.logger.Debug("parsed region", "language", l.Name(), "depth", cmd.depth, "start", cmd.span.Start, "end", cmd.span.End)
		entries = append(entries, entry)
	}

	return newSnapshot(entries, text.Len(), rootReused), mergeRanges(changed), nil
}

// reusableRoot returns an edited copy of the old root tree when the edit is
// consistent with both the old snapshot and the new text.
func reusableRoot(old *Snapshot, l *catalog.Language, edit *sitter.InputEdit, span doctext.Span) *sitter.Tree {
	if old == nil || old.Len() == 0 {
		return nil
	}
	root := old.Root()
	if !root.Parsed() || root.LanguageID() != l.ID() {
		return nil
	}
	if edit.StartByte > edit.OldEndByte || edit.OldEndByte > root.Range.End {
		return nil
	}
	if root.Range.End-edit.OldEndByte+edit.NewEndByte != span.End {
		return nil
	}
	tree := root.Tree.Clone()
	tree.Edit(edit)
	return tree
}

func (b *Builder) parse(l *catalog.Language, text *doctext.Text, entry *Entry, basis *sitter.Tree) *sitter.Tree {
	parser := b.pool.Get()
	defer b.pool.Put(parser)

	if err := parser.SetLanguage(l.Grammar()); err != nil {
		b.logger.Warn("incompatible grammar", "language", l.Name(), "err", err)
		return nil
	}
	if len(entry.Included) > 0 {
		local := make([]sitter.Range, len(entry.Included))
		for i, r := range entry.Included {
			local[i] = entry.LocalRange(r)
		}
		if err := parser.SetIncludedRanges(local); err != nil {
			b.logger.Warn("invalid included ranges", "language", l.Name(), "err", err)
			return nil
		}
	}
	units := text.Units()
	units = units[entry.ByteOffset/doctext.Scale : entry.Range.End/doctext.Scale]
	return parser.ParseUTF16LEWith(func(i int, _ sitter.Point) []uint16 {
		if i >= len(units) {
			return nil
		}
		return units[i:min(i+readChunk, len(units))]
	}, basis)
}

func editRange(edit *sitter.InputEdit) sitter.Range {
	return sitter.Range{
		StartByte:  edit.StartByte,
		EndByte:    edit.NewEndByte,
		StartPoint: edit.StartPosition,
		EndPoint:   edit.NewEndPosition,
	}
}

func spanRange(text *doctext.Text, span doctext.Span) sitter.Range {
	return sitter.Range{
		StartByte:  span.Start,
		EndByte:    span.End,
		StartPoint: pointAt(text, span.Start),
		EndPoint:   pointAt(text, span.End),
	}
}

// pointAt computes the point of an internal offset by scanning for newlines.
func pointAt(text *doctext.Text, offset uint) sitter.Point {
	units := text.Units()
	n := min(int(offset/doctext.Scale), len(units))
	var p sitter.Point
	for _, u := range units[:n] {
		if u == '\n' {
			p.Row++
			p.Column = 0
			continue
		}
		p.Column += doctext.Scale
	}
	return p
}

// mergeRanges sorts ranges and coalesces the ones that overlap or touch.
func mergeRanges(ranges []sitter.Range) []sitter.Range {
	if len(ranges) == 0 {
		return nil
	}
	slices.SortFunc(ranges, func(a, b sitter.Range) int {
		return cmp.Or(cmp.Compare(a.StartByte, b.StartByte), cmp.Compare(a.EndByte, b.EndByte))
	})
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.StartByte <= last.EndByte {
			if r.EndByte > last.EndByte {
				last.EndByte = r.EndByte
				last.EndPoint = r.EndPoint
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func closeEntries(entries []Entry) {
	for i := range entries {
		if entries[i].Tree != nil {
			entries[i].Tree.Close()
		}
	}
}
