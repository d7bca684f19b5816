package query

import (
	"testing"

	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tsjson "github.com/tree-sitter/tree-sitter-json/bindings/go"
)

func jsonLanguage() *sitter.Language {
	return sitter.NewLanguage(tsjson.Language())
}

func TestHighlightsVisibility(t *testing.T) {
	h, err := NewHighlights(jsonLanguage(), `
((string) @_key (#contains? @_key "k"))
(string) @string
(number) @number
`)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, []string{"_key", "string", "number"}, h.CaptureNames())
	require.False(t, h.Visible(0))
	require.True(t, h.Visible(1))
	require.True(t, h.Visible(2))
	require.False(t, h.Visible(3))
	require.Equal(t, 1, h.Predicates.Len())
}

func TestCompileErrors(t *testing.T) {
	_, err := NewHighlights(jsonLanguage(), `(missing_node) @x`)
	require.Error(t, err)
	var qerr *sitter.QueryError
	require.ErrorAs(t, err, &qerr)
	require.Equal(t, sitter.QueryErrorNodeType, qerr.Kind)

	_, err = NewHighlights(jsonLanguage(), `((string) @s (#contains? @s))`)
	require.Error(t, err)
}

func TestRangesCaptures(t *testing.T) {
	r, err := NewRanges(jsonLanguage(), `
(object "{" @start "}" @end) @fold
((array) @fold
 (#set! range.inner)
 (#set! fold.combined-lines)
 (#set! fold.collapsed)
 (#set! fold.text "[...]"))
`, MainFold)
	require.NoError(t, err)
	defer r.Close()

	require.GreaterOrEqual(t, r.Start, 0)
	require.GreaterOrEqual(t, r.End, 0)
	require.Equal(t, Pattern{}, r.Pattern(0))
	require.Equal(t, Pattern{Inner: true, Combined: true, Collapsed: true, Text: "[...]", HasText: true}, r.Pattern(1))
	require.Equal(t, Pattern{}, r.Pattern(9))

	_, err = NewRanges(jsonLanguage(), `(object) @fold`, MainIndent)
	require.ErrorIs(t, err, ErrNoMainCapture)

	only, err := NewRanges(jsonLanguage(), `(object) @indent`, MainIndent)
	require.NoError(t, err)
	defer only.Close()
	require.Equal(t, -1, only.Start)
	require.Equal(t, -1, only.End)
}
