package discovery

import (
	"context"

	"github.com/google/uuid"
	"github.com/unamentis/unamentis-go/pkg/persistence"
)

// CachedServerDiscovery returns the previously persisted server, if any.
// It never writes on its own initiative: SaveToCache and ClearCache are
// invoked by the orchestrator after health validation.
type CachedServerDiscovery struct {
	store *persistence.ServerCacheStore
}

// NewCachedServerDiscovery creates the cache tier backed by store.
func NewCachedServerDiscovery(store *persistence.ServerCacheStore) *CachedServerDiscovery {
	return &CachedServerDiscovery{store: store}
}

// Tier implements TierDiscoverer.
func (c *CachedServerDiscovery) Tier() Tier { return TierCached }

// Discover returns the cached server immediately, or no result when the
// cache is empty or unreadable. A stale or corrupt cache is a "not found",
// never an error: the orchestrator advances to the next tier.
func (c *CachedServerDiscovery) Discover(ctx context.Context) (*DiscoveredServer, error) {
	if ctx.Err() != nil {
		return nil, unwindError(ctx)
	}

	rec, err := c.store.Load()
	if err != nil || rec == nil {
		return nil, nil
	}

	server := &DiscoveredServer{
		ID:           uuid.NewString(),
		Name:         rec.Name,
		Host:         rec.Host,
		Port:         rec.Port,
		Method:       MethodCached,
		DiscoveredAt: rec.DiscoveredAt,
		Metadata:     rec.Metadata,
	}
	return server, nil
}

// Cancel implements TierDiscoverer. The cache lookup is synchronous and
// instantaneous, so there is nothing to unwind.
func (c *CachedServerDiscovery) Cancel() {}

// SaveToCache persists server as the single cached record, overwriting
// any previous one.
func (c *CachedServerDiscovery) SaveToCache(server *DiscoveredServer) error {
	return c.store.Save(&persistence.CachedServer{
		Host:         server.Host,
		Port:         server.Port,
		Name:         server.Name,
		Method:       string(server.Method),
		DiscoveredAt: server.DiscoveredAt,
		Metadata:     server.Metadata,
	})
}

// ClearCache removes the cached record.
func (c *CachedServerDiscovery) ClearCache() error {
	return c.store.Clear()
}

// Compile-time interface satisfaction check.
var _ TierDiscoverer = (*CachedServerDiscovery)(nil)
