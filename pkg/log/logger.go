package log

// Logger is the interface applications implement to receive stack events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a stack event. The single-threaded stack calls this
	// inline; implementations should be quick or queue.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// OrNoop returns l, or NoopLogger if l is nil. Stack components call this
// once at construction so the hot path never checks for nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
