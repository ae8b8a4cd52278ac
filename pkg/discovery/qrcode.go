package discovery

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// QRPayload is the decoded server address from a UnaMentis pairing QR code.
//
// Wire format (JSON):
//
//	{ "host": string, "port": number, "name"?: string, "timestamp"?: string|number }
//
// The timestamp is accepted either as an ISO-8601 date or as epoch seconds.
type QRPayload struct {
	// Host is the server address.
	Host string

	// Port is the gateway port.
	Port int

	// Name is an optional display name.
	Name string

	// Timestamp is when the code was generated; zero if absent.
	Timestamp time.Time
}

// rawQRPayload mirrors the wire shape with the timestamp left undecoded.
type rawQRPayload struct {
	Host      string          `json:"host"`
	Port      int             `json:"port"`
	Name      string          `json:"name"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseQRPayload decodes and validates a QR code payload.
// Every decode or validation failure wraps ErrInvalidQRCode.
func ParseQRPayload(data []byte) (*QRPayload, error) {
	var raw rawQRPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQRCode, err)
	}

	if raw.Host == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQRCode, ErrMissingHost)
	}
	if raw.Port < 1 || raw.Port > 65535 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQRCode, ErrInvalidPort)
	}

	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQRCode, err)
	}

	return &QRPayload{
		Host:      raw.Host,
		Port:      raw.Port,
		Name:      raw.Name,
		Timestamp: ts,
	}, nil
}

// parseTimestamp accepts an ISO-8601 string or an epoch-seconds number.
// An absent or null timestamp yields the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad timestamp string %q", s)
		}
		return ts, nil
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		sec, frac := math.Modf(epoch)
		return time.Unix(int64(sec), int64(frac*float64(time.Second))), nil
	}

	return time.Time{}, fmt.Errorf("bad timestamp %s", string(raw))
}

// Server converts the payload to a DiscoveredServer tagged MethodQRCode.
func (p *QRPayload) Server() *DiscoveredServer {
	name := p.Name
	if name == "" {
		name = "UnaMentis Server"
	}
	server := NewDiscoveredServer(p.Host, p.Port, name, MethodQRCode)
	if !p.Timestamp.IsZero() {
		server.Metadata = map[string]string{
			"qr_timestamp": p.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return server
}
