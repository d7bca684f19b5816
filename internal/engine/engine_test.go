package engine_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/engine"
	"github.com/hcengineering/tree-sitter-offload/internal/grammars"
	"github.com/hcengineering/tree-sitter-offload/internal/highlight"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/logging"
)

func units(s string) []uint16 { return utf16.Encode([]rune(s)) }

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, map[string]lang.ID) {
	t.Helper()
	c := catalog.New()
	ids, err := grammars.Register(c)
	require.NoError(t, err)
	e := engine.New(c, opts...)
	t.Cleanup(e.Close)
	return e, ids
}

func quiet() context.Context {
	return logging.WithLogger(context.Background(), logging.Discard())
}

func TestKeywordTokenInNativeUnits(t *testing.T) {
	e, _ := newEngine(t)
	grammar, _ := grammars.Language(lang.JavaScript)
	id, err := e.Catalog().Register(catalog.Grammar{Name: "keywords", Language: grammar})
	require.NoError(t, err)
	names, err := e.Catalog().SetHighlightQuery(id, `"void" @keyword`)
	require.NoError(t, err)
	require.Equal(t, []string{"keyword"}, names)

	text := units("let a = 1;void 0;" + strings.Repeat(" ", 83))
	snap, err := e.BuildSnapshot(quiet(), id, text)
	require.NoError(t, err)
	defer snap.Close()

	hl := e.Highlights(quiet(), snap, text, 0, 100)
	require.Equal(t, 0, hl.Start)
	pos, total := hl.Start, 0
	var keywords []int
	for _, tok := range hl.Tokens {
		if tok.Capture != highlight.CaptureNone {
			require.Equal(t, 4, tok.Length)
			keywords = append(keywords, pos)
		}
		pos += tok.Length
		total += tok.Length
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, []int{10}, keywords)
}

func TestIncrementalRebuildInNativeUnits(t *testing.T) {
	e, ids := newEngine(t)
	before := units("<script>let a = 1;</script>")
	after := units("<script>let ab = 1;</script>")

	old, err := e.BuildSnapshot(quiet(), ids[lang.HTML], before)
	require.NoError(t, err)
	defer old.Close()

	edit := engine.Edit{
		Start: 13, OldEnd: 13, NewEnd: 14,
		StartPoint:  engine.Point{Column: 13},
		OldEndPoint: engine.Point{Column: 13},
		NewEndPoint: engine.Point{Column: 14},
	}
	next, changed, err := e.RebuildSnapshot(quiet(), after, old, edit)
	require.NoError(t, err)
	defer next.Close()

	assert.True(t, next.RootReused())
	covered := false
	for _, r := range changed {
		if r.Start <= 13 && r.End >= 14 {
			covered = true
		}
	}
	assert.True(t, covered, "%v", changed)

	folds := e.FoldRanges(quiet(), next, after, 0, len(after), false)
	require.NotEmpty(t, folds)
	assert.Equal(t, 0, folds[0].Start)
	assert.Equal(t, len(after), folds[0].End)
	assert.Equal(t, engine.Point{Row: 0, Column: len(after)}, folds[0].EndPoint)
}

func TestIndentRangesInNativeUnits(t *testing.T) {
	e, ids := newEngine(t)
	text := units("if (a) {\n  b();\n}")
	snap, err := e.BuildSnapshot(quiet(), ids[lang.JavaScript], text)
	require.NoError(t, err)
	defer snap.Close()

	indents := e.IndentRanges(quiet(), snap, text, 0, len(text), true)
	require.NotEmpty(t, indents)
	block := indents[0]
	assert.Equal(t, 8, block.Start)
	assert.Equal(t, 16, block.End)
	assert.Equal(t, engine.Point{Row: 0, Column: 8}, block.StartPoint)
	assert.Equal(t, engine.Point{Row: 2, Column: 0}, block.EndPoint)
}

func TestUnknownLanguageFailsImmediately(t *testing.T) {
	var buf bytes.Buffer
	e, _ := newEngine(t)
	ctx := logging.WithLogger(context.Background(), logging.NewWriter(&buf, "warn"))
	_, err := e.BuildSnapshot(ctx, lang.ID(12345), units("x"))
	require.ErrorIs(t, err, catalog.ErrUnknownLanguage)
	assert.Contains(t, buf.String(), "build failed")
}

func TestSpansAreRecorded(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	e, ids := newEngine(t, engine.WithTracer(provider.Tracer("test")), engine.WithCacheSize(0))

	text := units(`{"a": [1, 2]}`)
	snap, err := e.BuildSnapshot(quiet(), ids[lang.JSON], text)
	require.NoError(t, err)
	defer snap.Close()
	e.Highlights(quiet(), snap, text, 0, len(text))

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"engine.BuildSnapshot", "engine.Highlights"}, names)
}

func TestHighlightsAreCachedPerSnapshot(t *testing.T) {
	e, ids := newEngine(t, engine.WithCacheSize(4))
	text := units(`[true, null]`)
	snap, err := e.BuildSnapshot(quiet(), ids[lang.JSON], text)
	require.NoError(t, err)
	defer snap.Close()

	first := e.Highlights(quiet(), snap, text, 0, len(text))
	second := e.Highlights(quiet(), snap, text, 0, len(text))
	assert.Equal(t, first, second)
	e.Forget(snap)
}
