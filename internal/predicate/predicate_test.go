package predicate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tsjson "github.com/tree-sitter/tree-sitter-json/bindings/go"
	"pgregory.net/rapid"
)

const fourOperators = `
((string) @s (#contains? @s "%[1]s"))
((string) @s (#not-contains? @s "%[1]s"))
((string) @s (#any-contains? @s "%[1]s"))
((string) @s (#any-not-contains? @s "%[1]s"))
`

func jsonLanguage() *sitter.Language {
	return sitter.NewLanguage(tsjson.Language())
}

func compile(source string) (*sitter.Query, *Set, error) {
	q, qerr := sitter.NewQuery(jsonLanguage(), source)
	if qerr != nil {
		return nil, nil, qerr
	}
	set, err := Parse(q, source)
	return q, set, err
}

// stringNodes parses a json array of strings and returns its elements.
func stringNodes(parser *sitter.Parser, src string) (*sitter.Tree, []sitter.Node) {
	tree := parser.Parse([]byte(src), nil)
	array := tree.RootNode().NamedChild(0)
	nodes := make([]sitter.Node, 0, array.NamedChildCount())
	for i := uint(0); i < array.NamedChildCount(); i++ {
		nodes = append(nodes, *array.NamedChild(i))
	}
	return tree, nodes
}

func matchOf(pattern uint, nodes []sitter.Node) *sitter.QueryMatch {
	m := &sitter.QueryMatch{PatternIndex: pattern}
	for _, n := range nodes {
		m.Captures = append(m.Captures, sitter.QueryCapture{Node: n, Index: 0})
	}
	return m
}

func newParser(t *testing.T) *sitter.Parser {
	parser := sitter.NewParser()
	t.Cleanup(parser.Close)
	require.NoError(t, parser.SetLanguage(jsonLanguage()))
	return parser
}

func TestParseIgnoresUnknownOperators(t *testing.T) {
	q, set, err := compile(`((string) @s (#set-something! @s "x") (#contains? @s "a"))`)
	require.NoError(t, err)
	defer q.Close()
	require.Equal(t, 1, set.Len())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		row     uint
		message string
	}{
		{
			name:    "arity",
			source:  "(number) @n\n((string) @s (#contains? @s))",
			row:     1,
			message: "wrong number of arguments to #contains? predicate",
		},
		{
			name:    "literal as capture",
			source:  `((string) @s (#any-contains? "x" "y"))`,
			row:     0,
			message: "first argument to #any-contains? predicate must be a capture name",
		},
		{
			name:    "capture as literal",
			source:  "(null) @z\n\n((string) @s (#not-contains? @s @s))",
			row:     2,
			message: "second argument to #not-contains? predicate must be a literal, got capture @s",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := compile(tc.source)
			require.Error(t, err)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			require.Equal(t, tc.row, perr.Row)
			require.Contains(t, perr.Message, tc.message)
		})
	}
}

func TestMatchAllSemantics(t *testing.T) {
	parser := newParser(t)
	tree, nodes := stringNodes(parser, `["foo", "bar"]`)
	defer tree.Close()
	require.Len(t, nodes, 2)

	q, set, err := compile(fmt.Sprintf(fourOperators, "o"))
	require.NoError(t, err)
	defer q.Close()

	src := `["foo", "bar"]`
	text := func(n *sitter.Node) string { return src[n.StartByte():n.EndByte()] }

	require.False(t, set.Satisfies(matchOf(0, nodes), text), "contains? needs every instance")
	require.True(t, set.Satisfies(matchOf(1, nodes[1:]), text))
	require.False(t, set.Satisfies(matchOf(1, nodes), text), "not-contains? needs every instance")
	require.True(t, set.Satisfies(matchOf(2, nodes), text), "any-contains? needs one instance")
	require.True(t, set.Satisfies(matchOf(3, nodes), text), "any-not-contains? needs one instance")
	require.False(t, set.Satisfies(matchOf(3, nodes[:1]), text))
}

func TestZeroInstancesReturnMatchAll(t *testing.T) {
	q, set, err := compile(fmt.Sprintf(fourOperators, "x"))
	require.NoError(t, err)
	defer q.Close()

	text := func(*sitter.Node) string { t.Fatalf("text must not be read"); return "" }
	require.True(t, set.Satisfies(matchOf(0, nil), text))
	require.True(t, set.Satisfies(matchOf(1, nil), text))
	require.False(t, set.Satisfies(matchOf(2, nil), text))
	require.False(t, set.Satisfies(matchOf(3, nil), text))
}

func TestNilSetAcceptsEverything(t *testing.T) {
	var set *Set
	require.True(t, set.Satisfies(matchOf(7, nil), nil))
}

func TestContainsNegationProperty(t *testing.T) {
	parser := newParser(t)
	rapid.Check(t, func(rt *rapid.T) {
		value := rapid.StringMatching(`[ab]{0,6}`).Draw(rt, "value")
		literal := rapid.StringMatching(`[ab]{0,3}`).Draw(rt, "literal")
		src := fmt.Sprintf(`["%s"]`, value)

		q, set, err := compile(fmt.Sprintf(fourOperators, literal))
		if err != nil {
			rt.Fatalf("compile: %v", err)
		}
		defer q.Close()
		tree, nodes := stringNodes(parser, src)
		defer tree.Close()

		text := func(n *sitter.Node) string { return src[n.StartByte():n.EndByte()] }
		if set.Satisfies(matchOf(0, nodes), text) == set.Satisfies(matchOf(1, nodes), text) {
			rt.Fatalf("contains? and not-contains? agree for %q in %q", literal, src)
		}
		if set.Satisfies(matchOf(2, nodes), text) == set.Satisfies(matchOf(3, nodes), text) {
			rt.Fatalf("any-contains? and any-not-contains? agree for %q in %q", literal, src)
		}
	})
}

func TestBuiltinTextPredicatesMoveIntoSet(t *testing.T) {
	q, set, err := compile(`
((string) @s (#eq? @s "\"foo\""))
((string) @s (#match? @s "^.ba"))
((string) @s (#any-of? @s "\"foo\"" "\"baz\""))
`)
	require.NoError(t, err)
	defer q.Close()
	require.Equal(t, 3, set.Len())
	for _, preds := range q.TextPredicates {
		require.Empty(t, preds)
	}

	parser := newParser(t)
	src := `["foo", "bar"]`
	tree, nodes := stringNodes(parser, src)
	defer tree.Close()
	text := func(n *sitter.Node) string { return src[n.StartByte():n.EndByte()] }

	require.True(t, set.Satisfies(matchOf(0, nodes[:1]), text))
	require.False(t, set.Satisfies(matchOf(0, nodes[1:]), text))
	require.True(t, set.Satisfies(matchOf(1, nodes[1:]), text))
	require.False(t, set.Satisfies(matchOf(1, nodes[:1]), text))
	require.True(t, set.Satisfies(matchOf(2, nodes[:1]), text))
	require.False(t, set.Satisfies(matchOf(2, nodes[1:]), text))
}
