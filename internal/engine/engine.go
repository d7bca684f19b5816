// Package engine is the editor-facing API. It takes and returns native
// (UTF-16 code unit) coordinates and works in doubled units underneath.
package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hcengineering/tree-sitter-offload/internal/catalog"
	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/folding"
	"github.com/hcengineering/tree-sitter-offload/internal/highlight"
	"github.com/hcengineering/tree-sitter-offload/internal/lang"
	"github.com/hcengineering/tree-sitter-offload/internal/logging"
	"github.com/hcengineering/tree-sitter-offload/internal/snapshot"
)

const (
	tracerName       = "github.com/hcengineering/tree-sitter-offload/internal/engine"
	defaultCacheSize = 256
)

// Sentinels carried by tokens that have no node kind or no capture.
const (
	KindNone    = highlight.KindNone
	CaptureNone = highlight.CaptureNone
)

type Engine struct {
	catalog *catalog.Catalog
	pool    *snapshot.Pool
	cache   *highlight.Cache
	tracer  trace.Tracer
}

type Option func(*Engine)

// WithCacheSize sets how many highlight results are kept. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n <= 0 {
			e.cache = nil
			return
		}
		e.cache = highlight.NewCache(n)
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func New(c *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		pool:    snapshot.NewPool(),
		cache:   highlight.NewCache(defaultCacheSize),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Close releases pooled parsers.
func (e *Engine) Close() { e.pool.Close() }

func (e *Engine) builder(ctx context.Context) *snapshot.Builder {
	return snapshot.NewBuilder(e.catalog, snapshot.WithPool(e.pool), snapshot.WithLogger(logging.FromContext(ctx)))
}

func (e *Engine) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// BuildSnapshot parses text with the language id as base. The caller owns
// the snapshot and must Close it.
func (e *Engine) BuildSnapshot(ctx context.Context, id lang.ID, text []uint16) (*snapshot.Snapshot, error) {
	ctx, span := e.start(ctx, "engine.BuildSnapshot",
		attribute.Int64("language.id", int64(id)),
		attribute.Int("text.length", len(text)))
	s, err := e.builder(ctx).Build(id, doctext.New(text))
	if err == nil {
		span.SetAttributes(attribute.Int("snapshot.entries", s.Len()))
	} else {
		logging.FromContext(ctx).Warn("build failed", "language", id, "err", err)
	}
	finish(span, err)
	return s, err
}

// RebuildSnapshot reparses text after edit, reusing what it can from old.
// The returned ranges may have changed and always include the edit.
func (e *Engine) RebuildSnapshot(ctx context.Context, text []uint16, old *snapshot.Snapshot, edit Edit) (*snapshot.Snapshot, []Range, error) {
	ctx, span := e.start(ctx, "engine.RebuildSnapshot",
		attribute.Int("text.length", len(text)),
		attribute.Int("edit.start", edit.Start))
	s, changed, err := e.builder(ctx).Rebuild(doctext.New(text), old, edit.internal())
	if err != nil {
		logging.FromContext(ctx).Warn("incremental build failed", "err", err)
		finish(span, err)
		return nil, nil, err
	}
	out := make([]Range, len(changed))
	for i, r := range changed {
		out[i] = nativeRange(r)
	}
	span.SetAttributes(
		attribute.Bool("snapshot.root_reused", s.RootReused()),
		attribute.Int("changed.count", len(out)))
	finish(span, nil)
	return s, out, nil
}

// Highlights tokenizes [start, end) of text as parsed into snap.
func (e *Engine) Highlights(ctx context.Context, snap *snapshot.Snapshot, text []uint16, start, end int) Highlights {
	_, span := e.start(ctx, "engine.Highlights", attribute.Int("range.start", start), attribute.Int("range.end", end))
	defer span.End()

	request := internalSpan(start, end)
	compute := func() highlight.Result {
		return highlight.Compute(snap, doctext.New(text), request)
	}
	var r highlight.Result
	if e.cache != nil {
		r = e.cache.Cached(snap.ID(), request, compute)
	} else {
		r = compute()
	}

	out := Highlights{Start: doctext.ToNative(r.Start), Tokens: make([]Token, len(r.Tokens))}
	for i, t := range r.Tokens {
		out.Tokens[i] = Token{Language: t.Language, Kind: t.Kind, Capture: t.Capture, Length: doctext.ToNative(t.Length)}
	}
	span.SetAttributes(attribute.Int("tokens.count", len(out.Tokens)))
	return out
}

// FoldRanges returns the fold ranges intersecting [start, end).
func (e *Engine) FoldRanges(ctx context.Context, snap *snapshot.Snapshot, text []uint16, start, end int, inner bool) []FoldRange {
	_, span := e.start(ctx, "engine.FoldRanges", attribute.Bool("inner", inner))
	defer span.End()

	folds := folding.Folds(snap, doctext.New(text), internalSpan(start, end), inner)
	out := make([]FoldRange, len(folds))
	for i, f := range folds {
		out[i] = FoldRange{Range: foldRange(f.Range), Collapsed: f.Collapsed, Text: f.Text, HasText: f.HasText}
	}
	span.SetAttributes(attribute.Int("ranges.count", len(out)))
	return out
}

// IndentRanges returns the indent ranges intersecting [start, end).
func (e *Engine) IndentRanges(ctx context.Context, snap *snapshot.Snapshot, text []uint16, start, end int, inner bool) []Range {
	_, span := e.start(ctx, "engine.IndentRanges", attribute.Bool("inner", inner))
	defer span.End()

	ranges := folding.Indents(snap, doctext.New(text), internalSpan(start, end), inner)
	out := make([]Range, len(ranges))
	for i, r := range ranges {
		out[i] = foldRange(r)
	}
	span.SetAttributes(attribute.Int("ranges.count", len(out)))
	return out
}

// Forget drops cached highlights of a snapshot that is about to be closed.
func (e *Engine) Forget(snap *snapshot.Snapshot) {
	if e.cache != nil {
		e.cache.Forget(snap.ID())
	}
}

func foldRange(r folding.Range) Range {
	return Range{
		Start:      doctext.ToNative(r.Span.Start),
		End:        doctext.ToNative(r.Span.End),
		StartPoint: toNativePoint(r.StartPoint),
		EndPoint:   toNativePoint(r.EndPoint),
	}
}

// EditedSnapshot returns a copy of the root region of snap with edit applied,
// to be diffed against the snapshot rebuilt after the same edit. The caller
// closes it.
func (e *Engine) EditedSnapshot(snap *snapshot.Snapshot, edit Edit) *snapshot.Snapshot {
	return snap.Edited(edit.internal())
}

// TreeDiff returns the root ranges whose syntax differs between an edited
// snapshot and its rebuild.
func (e *Engine) TreeDiff(edited, next *snapshot.Snapshot) []Range {
	spans := snapshot.ChangedRanges(edited, next)
	out := make([]Range, len(spans))
	for i, s := range spans {
		out[i] = Range{Start: doctext.ToNative(s.Start), End: doctext.ToNative(s.End)}
	}
	return out
}
