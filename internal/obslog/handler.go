// Package obslog wires request-scoped identifiers into every slog record
// without threading them through every function signature.
package obslog

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/etlcore/orchestrator/internal/requestid"
	"github.com/lmittmann/tint"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	mappingRefKey
)

// WithRunID attaches a run-id to ctx for log enrichment.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithMappingRef attaches a mapping-reference to ctx for log enrichment.
func WithMappingRef(ctx context.Context, mappingRef string) context.Context {
	return context.WithValue(ctx, mappingRefKey, mappingRef)
}

func runIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

func mappingRefFromContext(ctx context.Context) string {
	v, _ := ctx.Value(mappingRefKey).(string)
	return v
}

// ContextHandler wraps an slog.Handler and enriches every record with
// request_id, run_id, and mapping_ref pulled from the record's context,
// so call sites never repeat `"request_id", requestid.FromContext(ctx)`.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id := runIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("run_id", id))
	}
	if ref := mappingRefFromContext(ctx); ref != "" {
		r.AddAttrs(slog.String("mapping_ref", ref))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

// New builds the process-wide logger: tint for readable local output,
// JSON for staging/production log aggregation.
func New(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(NewContextHandler(inner))
}
