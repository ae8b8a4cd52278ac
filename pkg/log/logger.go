package log

// Logger is the interface applications implement to receive discovery
// events. Pass nil or NoopLogger to disable event capture.
type Logger interface {
	// Log records a discovery event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking stalls
	// the discovery loop.
	Log(event Event)
}

// NoopLogger discards all events. Use when event capture is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MultiLogger fans each event out to every sink in order. The
// discovery CLI uses it to mirror the console stream (SlogAdapter)
// into the durable attempt history (FileLogger).
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger combines sinks into a single Logger.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	return &MultiLogger{sinks: sinks}
}

// Log forwards the event to each sink.
func (m *MultiLogger) Log(event Event) {
	for _, sink := range m.sinks {
		sink.Log(event)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
