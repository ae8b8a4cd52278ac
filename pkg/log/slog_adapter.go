package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes discovery events to an slog.Logger.
// Useful for development when you want to see discovery progress in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("attempt_id", event.AttemptID),
		slog.String("category", event.Category.String()),
	}

	if event.Tier != "" {
		attrs = append(attrs, slog.String("tier", event.Tier))
	}
	if event.Host != "" {
		attrs = append(attrs, slog.String("host", event.Host))
		attrs = append(attrs, slog.Int("port", event.Port))
	}
	if event.Method != "" {
		attrs = append(attrs, slog.String("method", event.Method))
	}
	if event.NewState != "" {
		attrs = append(attrs,
			slog.String("old_state", event.OldState),
			slog.String("new_state", event.NewState),
		)
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if event.Elapsed != 0 {
		attrs = append(attrs, slog.Duration("elapsed", event.Elapsed))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "discovery", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
