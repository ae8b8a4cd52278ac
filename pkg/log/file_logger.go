package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends discovery events to a CBOR stream on disk, one
// event per Log call. The stream accumulates across sessions, so the
// attempt history outlives the process and can be inspected later with
// Reader (or the unamentis-log binary).
//
// Safe for concurrent use; the orchestrator and its tiers may log from
// several goroutines at once.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	closed bool
}

// NewFileLogger opens path for appending, creating it with mode 0644
// when it does not exist. Events from earlier sessions are preserved.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, enc: NewEncoder(f)}, nil
}

// Log appends the event to the stream. Encoding errors are dropped:
// event capture must never fail a discovery attempt.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.enc.Encode(event)
}

// Close flushes and closes the underlying file. Close is idempotent,
// and events logged afterwards are silently dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
