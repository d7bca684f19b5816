// Package grammars bundles the grammars and queries shipped with the engine.
package grammars

import (
	"embed"
	"io/fs"
	"path"
	"sync"
	"unsafe"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tscss "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tshtml "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tsjs "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tsjson "github.com/tree-sitter/tree-sitter-json/bindings/go"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

//go:embed queries
var queries embed.FS

type builtin struct {
	name      string
	aliases   []string
	mimetypes []string
	language  func() unsafe.Pointer
}

var builtins = []builtin{
	{
		name:      lang.HTML,
		aliases:   []string{"htm", "xhtml"},
		mimetypes: []string{"text/html", "application/xhtml+xml"},
		language:  tshtml.Language,
	},
	{
		name:      lang.JavaScript,
		aliases:   []string{"js", "jsx", "ecmascript"},
		mimetypes: []string{"text/javascript", "application/javascript", "application/ecmascript", "module"},
		language:  tsjs.Language,
	},
	{
		name:      lang.CSS,
		mimetypes: []string{"text/css"},
		language:  tscss.Language,
	},
	{
		name:      lang.JSON,
		aliases:   []string{"jsonc"},
		mimetypes: []string{"application/json", "importmap", "application/ld+json"},
		language:  tsjson.Language,
	},
}

var languages = sync.OnceValue(func() map[string]*sitter.Language {
	out := make(map[string]*sitter.Language, len(builtins))
	for _, b := range builtins {
		out[b.name] = sitter.NewLanguage(b.language())
	}
	return out
})

// Language returns a bundled grammar by name.
func Language(name string) (*sitter.Language, bool) {
	l, ok := languages()[name]
	return l, ok
}

// Names lists the bundled grammars in registration order.
func Names() []string {
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.name
	}
	return names
}

// Query returns the bundled query of the given kind for a grammar.
func Query(name, kind string) (string, bool) {
	data, err := fs.ReadFile(queries, path.Join("queries", name, kind+".scm"))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Register adds every bundled grammar and its queries to c.
func Register(c *catalog.Catalog) (map[string]lang.ID, error) {
	ids := make(map[string]lang.ID, len(builtins))
	var errs error
	for _, b := range builtins {
		language, _ := Language(b.name)
		id, err := c.Register(catalog.Grammar{
			Name:      b.name,
			Aliases:   b.aliases,
			Mimetypes: b.mimetypes,
			Language:  language,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		ids[b.name] = id
		errs = multierr.Append(errs, attachQueries(c, id, b.name))
	}
	if errs != nil {
		return ids, errors.Errorf("register builtin grammars: %w", errs)
	}
	return ids, nil
}

func attachQueries(c *catalog.Catalog, id lang.ID, name string) error {
	var errs error
	if src, ok := Query(name, "highlights"); ok {
		_, err := c.SetHighlightQuery(id, src)
		errs = multierr.Append(errs, err)
	}
	if src, ok := Query(name, "folds"); ok {
		errs = multierr.Append(errs, c.SetFoldQuery(id, src))
	}
	if src, ok := Query(name, "indents"); ok {
		errs = multierr.Append(errs, c.SetIndentQuery(id, src))
	}
	if src, ok := Query(name, "injections"); ok {
		errs = multierr.Append(errs, c.SetInjectionQuery(id, src))
	}
	return errs
}
