package discovery

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthValidator confirms a discovered address is actually serving the
// UnaMentis backend before it is trusted.
type HealthValidator interface {
	// Check returns nil when the server passed validation. Any other
	// status or transport failure rejects the candidate; the error is
	// never escalated past the orchestrator.
	Check(ctx context.Context, server *DiscoveredServer) error
}

// HealthChecker validates candidates with an HTTP GET to /health.
// Success is exactly HTTP 200.
type HealthChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewHealthChecker creates a checker with the fixed validation timeout.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		client:  &http.Client{Timeout: HealthCheckTimeout},
		timeout: HealthCheckTimeout,
	}
}

// Check implements HealthValidator.
func (h *HealthChecker) Check(ctx context.Context, server *DiscoveredServer) error {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, server.HealthURL(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHealthCheck, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHealthCheck, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrHealthCheck, resp.StatusCode)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ HealthValidator = (*HealthChecker)(nil)
