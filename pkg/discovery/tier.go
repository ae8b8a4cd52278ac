package discovery

import (
	"context"

	"github.com/unamentis/unamentis-go/pkg/persistence"
)

// TierDiscoverer is the capability implemented by each discovery strategy.
//
// Discover returns (nil, nil) when the tier found nothing before the
// context expired; timeout and empty result are treated identically by
// the orchestrator. It returns ErrCancelled when the discovery was torn
// down by Cancel or by cancellation of the attempt, so the orchestrator
// can distinguish user cancellation from normal exhaustion.
//
// Cancel must be safe to call whether or not a discovery is in progress
// and must cause an in-flight Discover to unwind promptly. Each
// implementation owns its resource lifecycle (listeners, scan sockets)
// and releases it on cancellation or completion.
type TierDiscoverer interface {
	// Tier identifies which tier this discoverer implements.
	Tier() Tier

	// Discover searches for a server until one is found or ctx expires.
	Discover(ctx context.Context) (*DiscoveredServer, error)

	// Cancel unwinds an in-flight Discover call.
	Cancel()
}

// DefaultTiers returns the standard fallback chain in priority order,
// with the cached tier backed by store.
func DefaultTiers(store *persistence.ServerCacheStore) []TierDiscoverer {
	return []TierDiscoverer{
		NewCachedServerDiscovery(store),
		NewBonjourDiscovery(BonjourConfig{}),
		NewSubnetScanDiscovery(ScanConfig{}),
	}
}

// unwindError maps a finished discover context to the tier result
// convention: deadline expiry is "no result", anything else is an
// explicit cancellation.
func unwindError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return nil
	}
	return ErrCancelled
}
