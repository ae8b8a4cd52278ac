package log

import (
	"time"
)

// Event represents a discovery event captured by the orchestrator.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// AttemptID uniquely identifies the discovery attempt (UUID).
	AttemptID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Tier names the discovery tier involved, if any.
	Tier string `cbor:"4,keyasint,omitempty"`

	// Host and Port identify the server candidate involved, if any.
	Host string `cbor:"5,keyasint,omitempty"`
	Port int    `cbor:"6,keyasint,omitempty"`

	// Method records how the candidate was discovered.
	Method string `cbor:"7,keyasint,omitempty"`

	// OldState and NewState carry state machine transitions.
	OldState string `cbor:"8,keyasint,omitempty"`
	NewState string `cbor:"9,keyasint,omitempty"`

	// Error is the failure text for rejection and error events.
	Error string `cbor:"10,keyasint,omitempty"`

	// Elapsed is how long the operation took, where meaningful.
	Elapsed time.Duration `cbor:"11,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAttemptStart marks the start of a discovery attempt.
	CategoryAttemptStart Category = 0

	// CategoryTierStart marks a tier's discover call starting.
	CategoryTierStart Category = 1

	// CategoryCandidate marks a tier producing a candidate server.
	CategoryCandidate Category = 2

	// CategoryValidation marks the outcome of a health validation.
	CategoryValidation Category = 3

	// CategoryStateChange marks an orchestrator state transition.
	CategoryStateChange Category = 4

	// CategoryCacheWrite marks the winner being persisted.
	CategoryCacheWrite Category = 5

	// CategoryAttemptEnd marks the end of a discovery attempt.
	CategoryAttemptEnd Category = 6

	// CategoryError marks a non-fatal error observed during discovery.
	CategoryError Category = 7
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAttemptStart:
		return "ATTEMPT_START"
	case CategoryTierStart:
		return "TIER_START"
	case CategoryCandidate:
		return "CANDIDATE"
	case CategoryValidation:
		return "VALIDATION"
	case CategoryStateChange:
		return "STATE_CHANGE"
	case CategoryCacheWrite:
		return "CACHE_WRITE"
	case CategoryAttemptEnd:
		return "ATTEMPT_END"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
