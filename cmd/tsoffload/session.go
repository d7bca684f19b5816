package main

import (
	"context"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/engine"
	"github.com/hcengineering/tree-sitter-offload/internal/grammars"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/logging"
	"github.com/hcengineering/tree-sitter-offload/internal/readfile"
	"github.com/hcengineering/tree-sitter-offload/internal/snapshot"
	"github.com/hcengineering/tree-sitter-offload/internal/tracing"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

var ErrNoLanguage = errors.Base("cannot detect language")

// session is one parsed document.
type session struct {
	ctx      context.Context
	engine   *engine.Engine
	tracing  *tracing.Provider
	language *catalog.Language
	text     []uint16
	snap     *snapshot.Snapshot
}

func (a *app) newCatalog() (*catalog.Catalog, error) {
	c := catalog.New()
	if _, err := grammars.Register(c); err != nil {
		return nil, err
	}
	if a.cfg.Manifest != "" {
		if err := c.LoadManifest(a.fs, a.cfg.Manifest, grammars.Language); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (a *app) newEngine(cmd *cobra.Command) (*engine.Engine, *tracing.Provider, error) {
	c, err := a.newCatalog()
	if err != nil {
		return nil, nil, err
	}
	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:  a.cfg.Tracing,
		Exporter: "stdout",
		Writer:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	if provider.Enabled() {
		logging.FromContext(cmd.Context()).Debug("tracing enabled", "exporter", "stdout")
	}
	eng := engine.New(c,
		engine.WithCacheSize(a.cfg.HighlightCacheSize),
		engine.WithTracer(provider.Tracer()))
	return eng, provider, nil
}

// open reads path and parses it. languageName overrides detection.
func (a *app) open(cmd *cobra.Command, path, languageName string) (*session, error) {
	text, err := readfile.ReadText(a.fs, path)
	if err != nil {
		return nil, err
	}
	if languageName == "" {
		languageName = lang.DetectContent(path, []byte(text.String()))
	}

	eng, provider, err := a.newEngine(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{ctx: cmd.Context(), engine: eng, tracing: provider, text: text.Units()}

	if languageName == "" {
		return nil, multierr.Append(errors.Errorf("%w for %s, use --lang", ErrNoLanguage, path), s.close())
	}
	s.language, err = eng.Catalog().LookupByName(languageName)
	if err != nil {
		return nil, multierr.Append(err, s.close())
	}

	logging.FromContext(s.ctx).Debug("parsing", "path", path, "language", s.language.Name(), "units", len(s.text))
	s.snap, err = eng.BuildSnapshot(s.ctx, s.language.ID(), s.text)
	if err != nil {
		return nil, multierr.Append(err, s.close())
	}
	return s, nil
}

// bounds clamps a requested native range to the document; end < 0 means the
// whole remainder.
func (s *session) bounds(start, end int) (int, int) {
	n := len(s.text)
	if end < 0 || end > n {
		end = n
	}
	start = max(0, min(start, end))
	return start, end
}

// captureName resolves a highlight token's capture index.
func (s *session) captureName(id lang.ID, capture uint16) string {
	if capture == engine.CaptureNone {
		return ""
	}
	l, err := s.engine.Catalog().Lookup(id)
	if err != nil || l.Highlights() == nil {
		return ""
	}
	names := l.Highlights().CaptureNames()
	if int(capture) >= len(names) {
		return ""
	}
	return names[capture]
}

func (s *session) languageName(id lang.ID) string {
	if id == lang.None {
		return "-"
	}
	l, err := s.engine.Catalog().Lookup(id)
	if err != nil {
		return "?"
	}
	return l.Name()
}

func (s *session) close() error {
	if s.snap != nil {
		s.engine.Forget(s.snap)
		s.snap.Close()
		s.snap = nil
	}
	s.engine.Close()
	return s.tracing.Shutdown(context.WithoutCancel(s.ctx))
}
