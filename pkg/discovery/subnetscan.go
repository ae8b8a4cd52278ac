package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SubnetScanDiscovery probes every address on the device's local subnet
// against the fixed port list. This is the most expensive tier and runs
// last in the chain. Probes fan out concurrently through a bounded
// worker group; the first address that accepts a TCP connection wins
// and the remaining probes are cancelled.
type SubnetScanDiscovery struct {
	config ScanConfig

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
}

// ScanConfig configures the subnet scan tier.
type ScanConfig struct {
	// Ports is the port list probed per address. Default: ScanPorts.
	Ports []int

	// Concurrency bounds the probe worker group. Default: ScanConcurrency.
	Concurrency int

	// ProbeTimeout bounds a single TCP connect. Default: ProbeTimeout.
	ProbeTimeout time.Duration

	// Hosts enumerates candidate addresses. If nil, the local IPv4
	// subnets of all up, non-loopback interfaces are enumerated.
	// Set this in tests to inject candidate lists.
	Hosts func() ([]string, error)

	// Dial performs a single probe connection. If nil, probes use a
	// TCP dialer bounded by ProbeTimeout. Set this in tests to make
	// probe timing deterministic.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSubnetScanDiscovery creates the subnet scan tier.
func NewSubnetScanDiscovery(config ScanConfig) *SubnetScanDiscovery {
	if len(config.Ports) == 0 {
		config.Ports = ScanPorts
	}
	if config.Concurrency <= 0 {
		config.Concurrency = ScanConcurrency
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = ProbeTimeout
	}
	if config.Hosts == nil {
		config.Hosts = localSubnetHosts
	}
	if config.Dial == nil {
		dialer := &net.Dialer{Timeout: config.ProbeTimeout}
		config.Dial = dialer.DialContext
	}
	return &SubnetScanDiscovery{config: config}
}

// Tier implements TierDiscoverer.
func (s *SubnetScanDiscovery) Tier() Tier { return TierSubnetScan }

// Discover probes the subnet until a server responds or ctx expires.
func (s *SubnetScanDiscovery) Discover(ctx context.Context) (*DiscoveredServer, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.cancelled = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	hosts, err := s.config.Hosts()
	if err != nil || len(hosts) == 0 {
		return nil, nil
	}

	found := make(chan *DiscoveredServer, 1)

	g, probeCtx := errgroup.WithContext(scanCtx)
	g.SetLimit(s.config.Concurrency)

	go func() {
		for _, host := range hosts {
			for _, port := range s.config.Ports {
				if probeCtx.Err() != nil {
					break
				}
				host, port := host, port
				g.Go(func() error {
					if !s.probe(probeCtx, host, port) {
						return nil
					}
					select {
					case found <- NewDiscoveredServer(host, port, "", MethodSubnetScan):
						cancel()
					default:
					}
					return nil
				})
			}
		}
		_ = g.Wait()
		close(found)
	}()

	select {
	case server, ok := <-found:
		if ok && server != nil && !s.wasCancelled() {
			return server, nil
		}
		if ok && server != nil {
			return nil, ErrCancelled
		}
		// All probes exhausted without a responder.
		if ctx.Err() == nil {
			return nil, nil
		}
		return nil, unwindError(ctx)

	case <-scanCtx.Done():
		// A winner may have raced the shutdown; never surface it after
		// an explicit Cancel.
		if server, ok := <-found; ok && server != nil && ctx.Err() == nil && !s.wasCancelled() {
			return server, nil
		}
		return nil, unwindError(ctx)
	}
}

// wasCancelled reports whether Cancel was called during the current scan.
func (s *SubnetScanDiscovery) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Cancel tears down an in-flight scan.
func (s *SubnetScanDiscovery) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancelled = true
		s.cancel()
	}
}

// probe attempts a TCP connection to host:port.
func (s *SubnetScanDiscovery) probe(ctx context.Context, host string, port int) bool {
	conn, err := s.config.Dial(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// localSubnetHosts enumerates candidate IPv4 addresses on the local
// subnets of all up, non-loopback interfaces. Subnets wider than /24 are
// capped to the /24 containing the interface address to bound the scan.
func localSubnetHosts() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var hosts []string
	seen := make(map[string]struct{})

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil {
				continue
			}
			for _, h := range hostsInSubnet(ip, ipnet.Mask) {
				if _, dup := seen[h]; dup {
					continue
				}
				seen[h] = struct{}{}
				hosts = append(hosts, h)
			}
		}
	}

	if len(hosts) == 0 {
		return nil, ErrNoLocalSubnet
	}
	return hosts, nil
}

// hostsInSubnet enumerates the host addresses of the subnet containing
// self, excluding the network address, the broadcast address, and self.
// Masks wider than /24 are narrowed to the /24 containing self.
func hostsInSubnet(self net.IP, mask net.IPMask) []string {
	ones, bits := mask.Size()
	if bits != 32 {
		return nil
	}
	if ones < 24 {
		ones = 24
		mask = net.CIDRMask(ones, 32)
	}
	if ones >= 31 {
		// Point-to-point links have no scannable neighbors.
		return nil
	}

	network := self.Mask(mask)
	size := 1 << (32 - ones)

	hosts := make([]string, 0, size-3)
	base := ipToUint32(network)
	selfV := ipToUint32(self)
	for i := 1; i < size-1; i++ {
		candidate := base + uint32(i)
		if candidate == selfV {
			continue
		}
		hosts = append(hosts, uint32ToIP(candidate).String())
	}
	return hosts
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Compile-time interface satisfaction check.
var _ TierDiscoverer = (*SubnetScanDiscovery)(nil)
