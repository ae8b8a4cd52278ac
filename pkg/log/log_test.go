package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 123456789, time.UTC),
		AttemptID: "a3a521c8-4a7a-4a9d-9a46-6f3a2f9a0001",
		Category:  CategoryValidation,
		Tier:      "bonjour",
		Host:      "192.168.1.10",
		Port:      8766,
		Method:    "bonjour",
		Elapsed:   42 * time.Millisecond,
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	original := sampleEvent()

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.AttemptID != original.AttemptID {
		t.Errorf("AttemptID = %q", decoded.AttemptID)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category = %v, want %v", decoded.Category, original.Category)
	}
	if decoded.Host != original.Host || decoded.Port != original.Port {
		t.Errorf("address = %s:%d", decoded.Host, decoded.Port)
	}
	if decoded.Elapsed != original.Elapsed {
		t.Errorf("Elapsed = %v, want %v", decoded.Elapsed, original.Elapsed)
	}
}

func TestEncodeEventOmitsEmptyFields(t *testing.T) {
	minimal := Event{
		Timestamp: time.Now(),
		AttemptID: "x",
		Category:  CategoryAttemptStart,
	}
	full := sampleEvent()

	minData, err := EncodeEvent(minimal)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	fullData, err := EncodeEvent(full)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	if len(minData) >= len(fullData) {
		t.Errorf("minimal event (%d bytes) not smaller than full event (%d bytes)",
			len(minData), len(fullData))
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryAttemptStart, "ATTEMPT_START"},
		{CategoryTierStart, "TIER_START"},
		{CategoryCandidate, "CANDIDATE"},
		{CategoryValidation, "VALIDATION"},
		{CategoryStateChange, "STATE_CHANGE"},
		{CategoryCacheWrite, "CACHE_WRITE"},
		{CategoryAttemptEnd, "ATTEMPT_END"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	events := []Event{
		{Timestamp: time.Now(), AttemptID: "a1", Category: CategoryAttemptStart},
		{Timestamp: time.Now(), AttemptID: "a1", Category: CategoryTierStart, Tier: "cached"},
		{Timestamp: time.Now(), AttemptID: "a1", Category: CategoryAttemptEnd, NewState: "idle"},
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Close is idempotent and post-close logging is dropped.
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	logger.Log(Event{AttemptID: "dropped"})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var got []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, event)
	}

	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	for i, e := range got {
		if e.Category != events[i].Category || e.AttemptID != events[i].AttemptID {
			t.Errorf("event %d = %+v, want %+v", i, e, events[i])
		}
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), AttemptID: "a1", Category: CategoryAttemptStart})
		logger.Close()
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		if _, err := reader.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("read %d events across sessions, want 2", count)
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				logger.Log(Event{Timestamp: time.Now(), AttemptID: "c", Category: CategoryError})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		if _, err := reader.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("corrupt event stream after concurrent writes: %v", err)
		}
		count++
	}
	if count != goroutines*perGoroutine {
		t.Errorf("read %d events, want %d", count, goroutines*perGoroutine)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	logger.Log(Event{Timestamp: base, AttemptID: "a1", Category: CategoryTierStart, Tier: "cached"})
	logger.Log(Event{Timestamp: base.Add(time.Second), AttemptID: "a1", Category: CategoryCandidate, Tier: "bonjour", Host: "10.0.0.5"})
	logger.Log(Event{Timestamp: base.Add(2 * time.Second), AttemptID: "a2", Category: CategoryCandidate, Tier: "bonjour", Host: "10.0.0.7"})
	logger.Close()

	readAll := func(f Filter) []Event {
		t.Helper()
		reader, err := NewFilteredReader(path, f)
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer reader.Close()
		var out []Event
		for {
			event, err := reader.Next()
			if err == io.EOF {
				return out
			}
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			out = append(out, event)
		}
	}

	if got := readAll(Filter{AttemptID: "a1"}); len(got) != 2 {
		t.Errorf("AttemptID filter: got %d events, want 2", len(got))
	}

	candidate := CategoryCandidate
	if got := readAll(Filter{Category: &candidate}); len(got) != 2 {
		t.Errorf("Category filter: got %d events, want 2", len(got))
	}

	if got := readAll(Filter{Tier: "bonjour", Host: "10.0.0.7"}); len(got) != 1 || got[0].AttemptID != "a2" {
		t.Errorf("Tier+Host filter: got %+v", got)
	}

	start := base.Add(time.Second)
	end := base.Add(2 * time.Second)
	if got := readAll(Filter{TimeStart: &start, TimeEnd: &end}); len(got) != 1 || got[0].Host != "10.0.0.5" {
		t.Errorf("time window filter: got %+v", got)
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b recordingLogger
	multi := NewMultiLogger(&a, &b)

	multi.Log(Event{AttemptID: "x", Category: CategoryAttemptStart})
	multi.Log(Event{AttemptID: "x", Category: CategoryAttemptEnd})

	if len(a.events) != 2 || len(b.events) != 2 {
		t.Errorf("fan-out delivered %d/%d events, want 2/2", len(a.events), len(b.events))
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		Timestamp: time.Now(),
		AttemptID: "a1",
		Category:  CategoryValidation,
		Host:      "10.0.0.5",
		Port:      8766,
		Error:     "status 503",
	})

	out := buf.String()
	for _, want := range []string{"attempt_id=a1", "category=VALIDATION", "host=10.0.0.5", "port=8766", "error=\"status 503\""} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "tier=") {
		t.Errorf("empty tier should be omitted:\n%s", out)
	}
}
