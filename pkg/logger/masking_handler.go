package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Attribute keys whose values never belong in log output. Payout addresses
// and device fingerprints identify real people; the rest are credentials.
var sensitiveKeys = map[string]struct{}{
	"password":       {},
	"token":          {},
	"secret":         {},
	"api_key":        {},
	"authorization":  {},
	"dsn":            {},
	"payout_address": {},
	"upi":            {},
	"fingerprint":    {},
}

// MaskingHandler redacts sensitive attributes before delegating to the
// wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next with attribute redaction.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(maskAttrs(attrs))}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

// Handle redacts flagged attributes and passes the record downstream.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func maskAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = maskAttr(attr)
	}
	return out
}

func maskAttr(attr slog.Attr) slog.Attr {
	if _, sensitive := sensitiveKeys[strings.ToLower(attr.Key)]; sensitive {
		attr.Value = slog.StringValue("***")
	}
	return attr
}
