package logging

import (
	"context"
	"errors"
	"log/slog"
)

// SourceKey is the attribute carrying the scoped source tag of a record
const SourceKey = "source"

// Handler fans each record out to every sink whose level admits it and tags
// the record with the logger's source.
type Handler struct {
	sinks  []slog.Handler
	source string
}

// NewHandler creates a Handler over sinks with an initial source tag
func NewHandler(source string, sinks ...slog.Handler) *Handler {
	return &Handler{sinks: sinks, source: source}
}

// Enabled reports whether any sink accepts level
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to each enabled sink; sink errors are joined
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.source != "" {
		r = r.Clone()
		r.AddAttrs(slog.String(SourceKey, h.source))
	}

	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies attrs to every sink
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		next[i] = s.WithAttrs(attrs)
	}
	return &Handler{sinks: next, source: h.source}
}

// WithGroup applies the group to every sink
func (h *Handler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		next[i] = s.WithGroup(name)
	}
	return &Handler{sinks: next, source: h.source}
}

// WithSource returns a handler whose source is scoped under name
func (h *Handler) WithSource(name string) *Handler {
	source := name
	if h.source != "" {
		source = h.source + "::" + name
	}
	return &Handler{sinks: h.sinks, source: source}
}

// Source returns the handler's source tag
func (h *Handler) Source() string {
	return h.source
}

// Child returns a logger scoped to name. Loggers not built by this package
// get a plain source attribute instead.
func Child(logger *slog.Logger, name string) *slog.Logger {
	if h, ok := logger.Handler().(*Handler); ok {
		return slog.New(h.WithSource(name))
	}
	return logger.With(SourceKey, name)
}
