package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/grammars"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/logging"
	"github.com/hcengineering/tree-sitter-offload/internal/snapshot"
)

const mustacheInjections = `
((text) @injection.content
 (#match? @injection.content "^\\{\\{.*\\}\\}$")
 (#offset! @injection.content 2 -2)
 (#set! injection.language "javascript"))
`

type fixture struct {
	catalog *catalog.Catalog
	ids     map[string]lang.ID
	builder *snapshot.Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := catalog.New()
	ids, err := grammars.Register(c)
	require.NoError(t, err)

	grammar, ok := grammars.Language(lang.HTML)
	require.True(t, ok)
	markup, err := c.Register(catalog.Grammar{Name: "markup", Language: grammar})
	require.NoError(t, err)
	require.NoError(t, c.SetInjectionQuery(markup, mustacheInjections))
	ids["markup"] = markup

	return &fixture{
		catalog: c,
		ids:     ids,
		builder: snapshot.NewBuilder(c, snapshot.WithLogger(logging.Discard())),
	}
}

func (f *fixture) build(t *testing.T, name, src string) *snapshot.Snapshot {
	t.Helper()
	s, err := f.builder.Build(f.ids[name], doctext.FromString(src))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

type shape struct {
	Depth    int
	Language string
	Range    doctext.Span
	Parsed   bool
}

func shapes(s *snapshot.Snapshot) []shape {
	out := make([]shape, s.Len())
	for i := range out {
		e := s.Entry(i)
		name := e.Hint.String()
		if e.Language != nil {
			name = e.Language.Name()
		}
		out[i] = shape{Depth: e.Depth, Language: name, Range: e.Range, Parsed: e.Parsed()}
	}
	return out
}

func insertEdit(at, n uint) sitter.InputEdit {
	return sitter.InputEdit{
		StartByte:      at,
		OldEndByte:     at,
		NewEndByte:     at + n,
		StartPosition:  sitter.Point{Column: at},
		OldEndPosition: sitter.Point{Column: at},
		NewEndPosition: sitter.Point{Column: at + n},
	}
}

func TestBuildInjectsScriptAndStyle(t *testing.T) {
	f := newFixture(t)
	s := f.build(t, lang.HTML, `<script>let x = 1;</script><style>p { color: red; }</style>`)

	got := shapes(s)
	require.Len(t, got, 3)
	assert.Equal(t, shape{Depth: 0, Language: lang.HTML, Range: doctext.Span{Start: 0, End: 118}, Parsed: true}, got[0])
	assert.Equal(t, shape{Depth: 1, Language: lang.JavaScript, Range: doctext.Span{Start: 16, End: 36}, Parsed: true}, got[1])
	assert.Equal(t, shape{Depth: 1, Language: lang.CSS, Range: doctext.Span{Start: 68, End: 102}, Parsed: true}, got[2])

	js := s.Entry(1)
	assert.Equal(t, 0, js.Parent)
	assert.Equal(t, uint(16), js.ByteOffset)
	assert.Equal(t, sitter.Point{Row: 0, Column: 16}, js.PointOffset)
	assert.Equal(t, "program", js.Root().Kind())
	assert.Equal(t, []int{1, 2}, s.Children(0))
	assert.False(t, s.RootReused())
}

func TestBuildUnknownLanguage(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.Build(lang.ID(999), doctext.FromString("{}"))
	require.ErrorIs(t, err, catalog.ErrUnknownLanguage)
}

func TestUnresolvedInjectionIsUnparsed(t *testing.T) {
	f := newFixture(t)
	grammar, _ := grammars.Language(lang.HTML)
	id, err := f.catalog.Register(catalog.Grammar{Name: "exotic", Language: grammar})
	require.NoError(t, err)
	require.NoError(t, f.catalog.SetInjectionQuery(id, `((text) @injection.content (#set! injection.language "cobol"))`))
	f.ids["exotic"] = id

	s := f.build(t, "exotic", "<p>hello</p>")
	got := shapes(s)
	require.Len(t, got, 2)
	assert.Equal(t, shape{Depth: 1, Language: "cobol", Range: doctext.Span{Start: 6, End: 16}, Parsed: false}, got[1])
	assert.Nil(t, s.Entry(1).Root())
	assert.Equal(t, lang.None, s.Entry(1).LanguageID())
}

func TestNestedOffsetsAcrossLines(t *testing.T) {
	f := newFixture(t)
	s := f.build(t, "markup", "<p>{{ a + b }}</p>\n<p>{{ c }}</p>\n")

	got := shapes(s)
	require.Len(t, got, 3)
	assert.Equal(t, doctext.Span{Start: 10, End: 24}, got[1].Range)
	assert.Equal(t, doctext.Span{Start: 48, End: 54}, got[2].Range)

	second := s.Entry(2)
	assert.Equal(t, sitter.Point{Row: 1, Column: 10}, second.PointOffset)
	id := second.Root().DescendantForByteRange(second.LocalByte(50), second.LocalByte(52))
	require.NotNil(t, id)
	assert.Equal(t, "identifier", id.Kind())
	assert.Equal(t, sitter.Point{Row: 1, Column: 12}, second.GlobalPoint(id.StartPosition()))
}

func TestIncrementalEditInsideInjection(t *testing.T) {
	f := newFixture(t)
	before := "<p>{{ a + b }}</p>\n<p>{{ c }}</p>\n"
	after := "<p>{{ a1 + b }}</p>\n<p>{{ c }}</p>\n"
	old := f.build(t, "markup", before)

	edit := insertEdit(14, 2)
	next, changed, err := f.builder.Rebuild(doctext.FromString(after), old, edit)
	require.NoError(t, err)
	t.Cleanup(next.Close)

	assert.True(t, next.RootReused())
	assert.Equal(t, doctext.Span{Start: 10, End: 26}, next.Entry(1).Range)
	assert.Equal(t, doctext.Span{Start: 50, End: 56}, next.Entry(2).Range)

	covered := false
	for _, r := range changed {
		if r.StartByte <= edit.StartByte && edit.NewEndByte <= r.EndByte {
			covered = true
		}
	}
	assert.True(t, covered, "changed ranges %v miss the edit", changed)

	fresh := f.build(t, "markup", after)
	assert.Equal(t, shapes(fresh), shapes(next))
}

func TestIncrementalInconsistentEditParsesFresh(t *testing.T) {
	f := newFixture(t)
	old := f.build(t, lang.JSON, `{"a": 1}`)

	next, changed, err := f.builder.Rebuild(doctext.FromString(`{"a": 12}`), old, insertEdit(12, 4))
	require.NoError(t, err)
	t.Cleanup(next.Close)

	assert.False(t, next.RootReused())
	require.Len(t, changed, 1)
	assert.Equal(t, uint(0), changed[0].StartByte)
	assert.Equal(t, uint(18), changed[0].EndByte)
}

func TestIncrementalEditsMatchFullBuild(t *testing.T) {
	f := newFixture(t)
	steps := []struct {
		text string
		edit sitter.InputEdit
	}{
		{`<script>let x = 1;</script>`, sitter.InputEdit{}},
		{`<script>let xy = 1;</script>`, insertEdit(26, 2)},
		{`<p></p><script>let xy = 1;</script>`, insertEdit(0, 14)},
		{`<p></p><script>let xy = 1;</script><style>a{}</style>`, insertEdit(70, 36)},
	}

	current := f.build(t, lang.HTML, steps[0].text)
	for _, step := range steps[1:] {
		next, _, err := f.builder.Rebuild(doctext.FromString(step.text), current, step.edit)
		require.NoError(t, err)
		t.Cleanup(next.Close)
		assert.True(t, next.RootReused(), step.text)
		current = next

		fresh := f.build(t, lang.HTML, step.text)
		assert.Equal(t, shapes(fresh), shapes(next), step.text)
	}
}

func TestEditedDiffBasis(t *testing.T) {
	f := newFixture(t)
	old := f.build(t, lang.JSON, `[1]`)
	edited := old.Edited(insertEdit(4, 6))
	defer edited.Close()
	assert.Equal(t, 1, edited.Len())
	assert.Equal(t, uint(12), edited.TextLen())

	next := f.build(t, lang.JSON, `[1, 2]`)
	for _, span := range snapshot.ChangedRanges(edited, next) {
		assert.LessOrEqual(t, span.End, next.TextLen())
	}
}

func TestPoolReusesParsers(t *testing.T) {
	pool := snapshot.NewPool()
	defer pool.Close()
	c := catalog.New()
	ids, err := grammars.Register(c)
	require.NoError(t, err)
	b := snapshot.NewBuilder(c, snapshot.WithPool(pool), snapshot.WithLogger(logging.Discard()))

	for range 3 {
		s, err := b.Build(ids[lang.HTML], doctext.FromString(`<script>1</script>`))
		require.NoError(t, err)
		s.Close()
	}
	assert.Equal(t, 1, pool.Idle())
}

func TestPoolClearsIncludedRanges(t *testing.T) {
	pool := snapshot.NewPool()
	defer pool.Close()

	parser := pool.Get()
	require.NoError(t, parser.SetIncludedRanges([]sitter.Range{{StartByte: 10, EndByte: 20}}))
	pool.Put(parser)
	require.Equal(t, 1, pool.Idle())

	again := pool.Get()
	assert.Same(t, parser, again)
	ranges := again.IncludedRanges()
	require.Len(t, ranges, 1)
	assert.Equal(t, uint(0), ranges[0].StartByte)
	assert.Greater(t, ranges[0].EndByte, uint(20))
	pool.Put(again)
}
