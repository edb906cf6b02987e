package sanitize

import (
	"context"
	"log/slog"
)

// LogHandler wraps another slog.Handler and redacts secrets from every
// record before delegating. Install it at logger construction so no
// component can log an unsanitized token by accident.
type LogHandler struct {
	inner slog.Handler
}

// NewLogHandler wraps inner with redaction.
func NewLogHandler(inner slog.Handler) *LogHandler {
	return &LogHandler{inner: inner}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, Message(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &LogHandler{inner: h.inner.WithAttrs(clean)}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{inner: h.inner.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	if SecretKey(a.Key) {
		return slog.String(a.Key, Marker)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Message(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]any, 0, len(members))
		for _, m := range members {
			clean = append(clean, sanitizeAttr(m))
		}
		return slog.Group(a.Key, clean...)
	default:
		return a
	}
}
