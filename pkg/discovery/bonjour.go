package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// BonjourDiscovery browses for _unamentis._tcp advertisements on the
// local network segment. The first successfully resolved advertisement
// wins; later resolutions in the same browse are ignored.
type BonjourDiscovery struct {
	config BonjourConfig

	mu     sync.Mutex
	cancel context.CancelFunc
}

// BonjourConfig configures the Bonjour tier.
type BonjourConfig struct {
	// ServiceType overrides the browsed service type.
	// Default: ServiceType.
	ServiceType string

	// Interface specifies which network interface to browse on.
	// Empty string means all interfaces.
	Interface string
}

// NewBonjourDiscovery creates the Bonjour tier.
func NewBonjourDiscovery(config BonjourConfig) *BonjourDiscovery {
	if config.ServiceType == "" {
		config.ServiceType = ServiceType
	}
	return &BonjourDiscovery{config: config}
}

// Tier implements TierDiscoverer.
func (b *BonjourDiscovery) Tier() Tier { return TierBonjour }

// Discover browses until an advertisement resolves or ctx expires.
func (b *BonjourDiscovery) Discover(ctx context.Context) (*DiscoveredServer, error) {
	browseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.cancel = nil
		b.mu.Unlock()
	}()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		_ = zeroconf.Browse(browseCtx, b.config.ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				// Browse ended on its own (multicast unavailable or
				// resolver error): equivalent to nothing found.
				if browseCtx.Err() == nil {
					return nil, nil
				}
				return nil, unwindError(ctx)
			}
			// Entries from interfaces that failed to resolve an
			// address are skipped; another interface may still
			// deliver a resolvable one.
			server := entryToServer(entry)
			if server == nil {
				continue
			}
			return server, nil

		case <-removed:
			// A single-shot browse does not track removals.

		case <-browseCtx.Done():
			return nil, unwindError(ctx)
		}
	}
}

// Cancel tears down the active browse session.
func (b *BonjourDiscovery) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *BonjourDiscovery) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToServer converts a resolved zeroconf entry to a DiscoveredServer.
// Returns nil when the entry carries no usable address.
func entryToServer(entry *zeroconf.ServiceEntry) *DiscoveredServer {
	host := pickAddress(entry)
	if host == "" {
		return nil
	}

	name := entry.Instance
	if name == "" {
		name = strings.TrimSuffix(entry.HostName, ".")
	}

	meta := parseTXTMetadata(entry.Text)
	server := NewDiscoveredServer(host, candidatePort(meta, entry.Port), name, MethodBonjour)
	server.Metadata = meta
	return server
}

// candidatePort selects the port health validation should target. The
// SRV record advertises the voice gateway port, but /health is served
// by the management API on the port named in the management_port TXT
// property. Falls back to the SRV port when the TXT value is missing
// or unusable.
func candidatePort(meta map[string]string, srvPort int) int {
	raw, ok := meta[TXTKeyManagementPort]
	if !ok {
		return srvPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return srvPort
	}
	return port
}

// pickAddress selects a connectable address from a resolved entry,
// preferring IPv4 and falling back to the advertised hostname.
func pickAddress(entry *zeroconf.ServiceEntry) string {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0].String()
	}
	if len(entry.AddrIPv6) > 0 {
		return entry.AddrIPv6[0].String()
	}
	return strings.TrimSuffix(entry.HostName, ".")
}

// parseTXTMetadata converts "key=value" TXT strings to a metadata map.
// Malformed entries (no '=') are kept with an empty value.
func parseTXTMetadata(txt []string) map[string]string {
	if len(txt) == 0 {
		return nil
	}
	meta := make(map[string]string, len(txt))
	for _, record := range txt {
		key, value, _ := strings.Cut(record, "=")
		if key == "" {
			continue
		}
		meta[key] = value
	}
	return meta
}

// Compile-time interface satisfaction check.
var _ TierDiscoverer = (*BonjourDiscovery)(nil)
