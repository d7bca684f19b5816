package catalog

import (
	"path/filepath"

	"github.com/spf13/afero"
	sitter "github.com/tree-sitter/go-tree-sitter"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Manifest lists languages to register on top of the builtin grammars.
type Manifest struct {
	Languages []ManifestLanguage `yaml:"languages"`
}

type ManifestLanguage struct {
	Name      string   `yaml:"name"`
	Grammar   string   `yaml:"grammar"`
	Aliases   []string `yaml:"aliases"`
	Mimetypes []string `yaml:"mimetypes"`
	Queries   Queries  `yaml:"queries"`
}

// Queries holds query file paths, relative to the manifest.
type Queries struct {
	Highlights string `yaml:"highlights"`
	Folds      string `yaml:"folds"`
	Indents    string `yaml:"indents"`
	Injections string `yaml:"injections"`
}

// GrammarSource maps a grammar key from a manifest to a compiled grammar.
type GrammarSource func(key string) (*sitter.Language, bool)

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// LoadManifest registers every language of the manifest at path. A language
// that fails does not stop the others; all failures are returned together.
func (c *Catalog) LoadManifest(fs afero.Fs, path string, grammars GrammarSource) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return errors.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	var errs error
	for _, entry := range m.Languages {
		if err := c.loadLanguage(fs, dir, entry, grammars); err != nil {
			errs = multierr.Append(errs, errors.Errorf("language %q: %w", entry.Name, err))
		}
	}
	return errs
}

func (c *Catalog) loadLanguage(fs afero.Fs, dir string, entry ManifestLanguage, grammars GrammarSource) error {
	grammar, ok := grammars(entry.Grammar)
	if !ok {
		return errors.Errorf("unknown grammar %q", entry.Grammar)
	}
	id, err := c.Register(Grammar{
		Name:      entry.Name,
		Aliases:   entry.Aliases,
		Mimetypes: entry.Mimetypes,
		Language:  grammar,
	})
	if err != nil {
		return err
	}

	read := func(rel string) (string, bool, error) {
		if rel == "" {
			return "", false, nil
		}
		p := rel
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, rel)
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return "", false, errors.Errorf("read query: %w", err)
		}
		return string(data), true, nil
	}

	var errs error
	steps := []struct {
		path string
		set  func(string) error
	}{
		{entry.Queries.Highlights, func(src string) error { _, err := c.SetHighlightQuery(id, src); return err }},
		{entry.Queries.Folds, func(src string) error { return c.SetFoldQuery(id, src) }},
		{entry.Queries.Indents, func(src string) error { return c.SetIndentQuery(id, src) }},
		{entry.Queries.Injections, func(src string) error { return c.SetInjectionQuery(id, src) }},
	}
	for _, step := range steps {
		src, ok, err := read(step.path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		errs = multierr.Append(errs, step.set(src))
	}
	return errs
}
