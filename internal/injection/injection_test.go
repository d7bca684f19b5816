package injection

import (
	"testing"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"

	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tshtml "github.com/tree-sitter/tree-sitter-html/bindings/go"
)

func htmlLanguage() *sitter.Language {
	return sitter.NewLanguage(tshtml.Language())
}

func parseHTML(t *testing.T, src string) (*doctext.Text, *sitter.Tree) {
	t.Helper()
	text := doctext.FromString(src)
	parser := sitter.NewParser()
	defer parser.Close()
	require.NoError(t, parser.SetLanguage(htmlLanguage()))
	tree := parser.ParseUTF16LE(text.Units(), nil)
	require.NotNil(t, tree)
	t.Cleanup(tree.Close)
	return text, tree
}

func collect(t *testing.T, source string, src string) ([]Match, *doctext.Text) {
	t.Helper()
	q, err := New(htmlLanguage(), source)
	require.NoError(t, err)
	defer q.Close()
	text, tree := parseHTML(t, src)
	matches := q.Collect(tree.RootNode(), text.Slice, []doctext.Span{{Start: 0, End: text.Len()}})
	return matches, text
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target error
		kind   ErrorKind
	}{
		{
			name:   "missing content",
			source: `(script_element (raw_text) @x)`,
			target: ErrNoContentCapture,
		},
		{
			name:   "language conflict with inline capture",
			source: `((element (text) @injection.language (text) @injection.content) (#set! injection.language "css"))`,
			kind:   LanguageConflict,
		},
		{
			name:   "language property without value",
			source: `((raw_text) @injection.content (#set! injection.language))`,
			kind:   InvalidProperty,
		},
		{
			name:   "combined with value",
			source: `((raw_text) @injection.content (#set! injection.combined "yes"))`,
			kind:   InvalidProperty,
		},
		{
			name:   "offset arity",
			source: `((raw_text) @injection.content (#offset! @injection.content 1))`,
			kind:   InvalidPredicate,
		},
		{
			name:   "offset not a number",
			source: `((raw_text) @injection.content (#offset! @injection.content "a" "1"))`,
			kind:   InvalidPredicate,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(htmlLanguage(), tc.source)
			require.Error(t, err)
			if tc.target != nil {
				require.ErrorIs(t, err, tc.target)
				return
			}
			var perr *PatternError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, tc.kind, perr.Kind)
		})
	}
}

func TestStaticLanguage(t *testing.T) {
	src := "<p>x</p><script>let a = 1;</script>"
	matches, text := collect(t, `((script_element (raw_text) @injection.content) (#set! injection.language "javascript"))`, src)
	require.Len(t, matches, 1)
	m := matches[0]
	require.Equal(t, lang.ByName("javascript"), m.Language)
	require.Equal(t, "let a = 1;", text.Slice(m.Range.Start, m.Range.End))
	require.Len(t, m.Included, 1)
	require.Equal(t, m.Range.Start, m.Included[0].StartByte)
	require.Equal(t, uint(16*2), m.Included[0].StartPoint.Column)
}

func TestInlineMimetype(t *testing.T) {
	src := `<script type="text/babel">x()</script>`
	matches, _ := collect(t, `
(script_element
  (start_tag
    (attribute
      (attribute_name) @_name
      (quoted_attribute_value (attribute_value) @injection.mimetype)))
  (raw_text) @injection.content
  (#eq? @_name "type"))
`, src)
	require.Len(t, matches, 1)
	require.Equal(t, lang.ByMimetype("text/babel"), matches[0].Language)
}

func TestOffsetAndContains(t *testing.T) {
	src := "<p>{{ a + b }}</p><p>plain</p>"
	matches, text := collect(t, `
((text) @injection.content
  (#contains? @injection.content "{{")
  (#offset! @injection.content 2 -2)
  (#set! injection.language "javascript"))
`, src)
	require.Len(t, matches, 1)
	m := matches[0]
	require.Equal(t, " a + b ", text.Slice(m.Range.Start, m.Range.End))
	r := m.Included[0]
	require.Equal(t, uint(5*2), r.StartPoint.Column)
	require.Equal(t, uint(12*2), r.EndPoint.Column)
}

func TestMissingLanguageIsDiscarded(t *testing.T) {
	matches, _ := collect(t, `((raw_text) @injection.content)`, "<script>x</script>")
	require.Empty(t, matches)
}

func TestChangedRangesRestrictMatches(t *testing.T) {
	q, err := New(htmlLanguage(), `((text) @injection.content (#set! injection.language "javascript"))`)
	require.NoError(t, err)
	defer q.Close()
	src := "<p>one</p><p>two</p>"
	text, tree := parseHTML(t, src)

	second := doctext.Span{Start: 13 * 2, End: 16 * 2}
	matches := q.Collect(tree.RootNode(), text.Slice, []doctext.Span{second})
	require.Len(t, matches, 1)
	require.Equal(t, "two", text.Slice(matches[0].Range.Start, matches[0].Range.End))

	// One unit of slack on each side still catches a match that ends at the edit.
	touching := doctext.Span{Start: 6 * 2, End: 6 * 2}
	matches = q.Collect(tree.RootNode(), text.Slice, []doctext.Span{touching})
	require.Len(t, matches, 1)
	require.Equal(t, "one", text.Slice(matches[0].Range.Start, matches[0].Range.End))
}

func TestCombinedMatches(t *testing.T) {
	src := "<p>a</p><p>b</p><p>c</p>"
	matches, text := collect(t, `((text) @injection.content (#set! injection.language "javascript") (#set! injection.combined))`, src)
	require.Len(t, matches, 1)
	m := matches[0]
	require.True(t, m.Combined)
	require.Len(t, m.Included, 3)
	require.Equal(t, "a</p><p>b</p><p>c", text.Slice(m.Range.Start, m.Range.End))
}

func TestExcludeChildren(t *testing.T) {
	src := "<div><b>x</b>tail</div>"
	// Every byte of the element belongs to one of its children, so nothing is
	// left to inject once children are excluded.
	matches, _ := collect(t, `((element (start_tag (tag_name) @_t)) @injection.content (#eq? @_t "div") (#set! injection.language "javascript"))`, src)
	require.Empty(t, matches)

	matches, text := collect(t, `((element (start_tag (tag_name) @_t)) @injection.content (#eq? @_t "div") (#set! injection.language "javascript") (#set! injection.include-children))`, src)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Included, 1)
	require.Equal(t, src, text.Slice(matches[0].Range.Start, matches[0].Range.End))
}

func TestExcludeChildrenSplitsAroundChildren(t *testing.T) {
	text, tree := parseHTML(t, `<div class="x"></div>`)
	element := tree.RootNode().NamedChild(0)
	startTag := element.NamedChild(0)
	require.Equal(t, "start_tag", startTag.Kind())

	ranges := excludeChildren(startTag, startTag.Range())
	require.Len(t, ranges, 1)
	require.Equal(t, " ", text.Slice(ranges[0].StartByte, ranges[0].EndByte))
	require.Equal(t, uint(4*2), ranges[0].StartPoint.Column)
	require.Equal(t, uint(5*2), ranges[0].EndPoint.Column)
}
