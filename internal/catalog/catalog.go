// Package catalog stores the grammars known to the engine and the queries
// attached to them.
//
// Ids come from a counter and are never reused. Languages are never retired:
// a snapshot may hold a language for as long as it lives, and the catalog has
// no way to know when the last snapshot is gone.
package catalog

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hcengineering/tree-sitter-offload/internal/injection"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/query"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrUnknownLanguage   = errors.Base("unknown language")
	ErrDuplicateLanguage = errors.Base("language already registered")
	ErrQueryAlreadySet   = errors.Base("query already set")
)

// Grammar describes a language to register.
type Grammar struct {
	Name      string
	Aliases   []string
	Mimetypes []string
	Language  *sitter.Language
}

type Language struct {
	id        lang.ID
	name      string
	mimetypes []string
	grammar   *sitter.Language

	mu         sync.RWMutex
	highlights *query.Highlights
	folds      *query.Ranges
	indents    *query.Ranges
	injections *injection.Query
}

func (l *Language) ID() lang.ID               { return l.id }
func (l *Language) Name() string              { return l.name }
func (l *Language) Mimetypes() []string       { return l.mimetypes }
func (l *Language) Grammar() *sitter.Language { return l.grammar }

func (l *Language) Highlights() *query.Highlights {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.highlights
}

func (l *Language) Folds() *query.Ranges {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.folds
}

func (l *Language) Indents() *query.Ranges {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indents
}

func (l *Language) Injections() *injection.Query {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.injections
}

type Catalog struct {
	mu     sync.RWMutex
	byID   map[lang.ID]*Language
	byName map[string]*Language
	byMime map[string]*Language
	lastID atomic.Int64
}

func New() *Catalog {
	return &Catalog{
		byID:   make(map[lang.ID]*Language),
		byName: make(map[string]*Language),
		byMime: make(map[string]*Language),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Catalog) Register(g Grammar) (lang.ID, error) {
	name := normalize(g.Name)
	if name == "" || g.Language == nil {
		return lang.None, errors.New("grammar needs a name and a language")
	}
	names := []string{name}
	for _, alias := range g.Aliases {
		names = append(names, normalize(alias))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		if _, ok := c.byName[n]; ok {
			return lang.None, errors.Errorf("%w: %s", ErrDuplicateLanguage, n)
		}
	}

	l := &Language{
		id:        lang.ID(c.lastID.Add(1)),
		name:      name,
		mimetypes: slices.Clone(g.Mimetypes),
		grammar:   g.Language,
	}
	c.byID[l.id] = l
	for _, n := range names {
		c.byName[n] = l
	}
	for _, m := range g.Mimetypes {
		m = normalize(m)
		if _, ok := c.byMime[m]; !ok {
			c.byMime[m] = l
		}
	}
	return l.id, nil
}

func (c *Catalog) Lookup(id lang.ID) (*Language, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.byID[id]
	if !ok {
		return nil, errors.Errorf("%w: id %d", ErrUnknownLanguage, id)
	}
	return l, nil
}

func (c *Catalog) LookupByName(name string) (*Language, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.byName[normalize(name)]
	if !ok {
		return nil, errors.Errorf("%w: %q", ErrUnknownLanguage, name)
	}
	return l, nil
}

func (c *Catalog) LookupByMimetype(mimetype string) (*Language, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.byMime[normalize(mimetype)]
	if !ok {
		return nil, errors.Errorf("%w: mimetype %q", ErrUnknownLanguage, mimetype)
	}
	return l, nil
}

// Resolve turns a language reference into a registered language.
func (c *Catalog) Resolve(ref lang.Ref) (*Language, error) {
	switch ref.Kind {
	case lang.RefKnown:
		return c.Lookup(ref.ID)
	case lang.RefMimetype:
		return c.LookupByMimetype(ref.Name)
	default:
		return c.LookupByName(ref.Name)
	}
}

// Names lists the canonical names of all registered languages.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byID))
	for _, l := range c.byID {
		names = append(names, l.name)
	}
	slices.Sort(names)
	return names
}

// SetHighlightQuery compiles and attaches a highlight query. It returns the
// query's capture names, indexed by capture id.
func (c *Catalog) SetHighlightQuery(id lang.ID, source string) ([]string, error) {
	l, err := c.Lookup(id)
	if err != nil {
		return nil, err
	}
	q, err := query.NewHighlights(l.grammar, source)
	if err != nil {
		return nil, errors.Errorf("%s highlights: %w", l.name, err)
	}
	if err := attach(l, &l.highlights, q, q.Close); err != nil {
		return nil, err
	}
	return q.CaptureNames(), nil
}

func (c *Catalog) SetFoldQuery(id lang.ID, source string) error {
	return c.setRanges(id, source, query.MainFold, func(l *Language) **query.Ranges { return &l.folds })
}

func (c *Catalog) SetIndentQuery(id lang.ID, source string) error {
	return c.setRanges(id, source, query.MainIndent, func(l *Language) **query.Ranges { return &l.indents })
}

func (c *Catalog) setRanges(id lang.ID, source string, main string, slot func(*Language) **query.Ranges) error {
	l, err := c.Lookup(id)
	if err != nil {
		return err
	}
	q, err := query.NewRanges(l.grammar, source, main)
	if err != nil {
		return errors.Errorf("%s %s query: %w", l.name, main, err)
	}
	return attach(l, slot(l), q, q.Close)
}

func (c *Catalog) SetInjectionQuery(id lang.ID, source string) error {
	l, err := c.Lookup(id)
	if err != nil {
		return err
	}
	q, err := injection.New(l.grammar, source)
	if err != nil {
		return errors.Errorf("%s injections: %w", l.name, err)
	}
	return attach(l, &l.injections, q, q.Close)
}

func attach[T any](l *Language, slot **T, q *T, closeFn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if *slot != nil {
		closeFn()
		return errors.Errorf("%w: %s", ErrQueryAlreadySet, l.name)
	}
	*slot = q
	return nil
}
