package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes stack events to an slog.Logger.
// Useful for development when you want to see stack events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Errors log at Warn level,
// everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.NodeID != 0 {
		attrs = append(attrs, slog.Uint64("node", uint64(event.NodeID)))
	}
	if event.Port != 0 {
		attrs = append(attrs, slog.Uint64("port", uint64(event.Port)))
	}
	if event.TransferID != 0 {
		attrs = append(attrs, slog.Uint64("transfer_id", event.TransferID))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	level := slog.LevelDebug
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
		level = slog.LevelWarn
	}

	a.logger.LogAttrs(context.Background(), level, "cyphal", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
