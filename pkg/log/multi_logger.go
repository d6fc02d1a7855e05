package log

// MultiLogger fans events out to several loggers, e.g. a capture file plus
// a live slog sink.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger delivering each event to every non-nil
// element of loggers, in order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	kept := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &MultiLogger{loggers: kept}
}

// Log delivers the event to every registered logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
