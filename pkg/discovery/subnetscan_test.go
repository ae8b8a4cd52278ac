package discovery

import (
	"context"
	"errors"
	"net"
	"sort"
	"testing"
	"time"
)

func TestHostsInSubnet(t *testing.T) {
	hosts := hostsInSubnet(net.IPv4(192, 168, 1, 42).To4(), net.CIDRMask(24, 32))

	// 256 addresses minus network, broadcast, and self.
	if len(hosts) != 253 {
		t.Fatalf("got %d hosts, want 253", len(hosts))
	}

	sort.Strings(hosts)
	has := func(h string) bool {
		i := sort.SearchStrings(hosts, h)
		return i < len(hosts) && hosts[i] == h
	}
	if has("192.168.1.0") {
		t.Error("network address must be excluded")
	}
	if has("192.168.1.255") {
		t.Error("broadcast address must be excluded")
	}
	if has("192.168.1.42") {
		t.Error("self must be excluded")
	}
	if !has("192.168.1.1") || !has("192.168.1.254") {
		t.Error("expected first and last host addresses present")
	}
}

func TestHostsInSubnetCapsWideMasks(t *testing.T) {
	// A /16 would mean 65534 probes; the scan caps at the /24 around self.
	hosts := hostsInSubnet(net.IPv4(10, 1, 7, 9).To4(), net.CIDRMask(16, 32))
	if len(hosts) != 253 {
		t.Fatalf("got %d hosts, want 253", len(hosts))
	}
	for _, h := range hosts {
		ip := net.ParseIP(h).To4()
		if ip[0] != 10 || ip[1] != 1 || ip[2] != 7 {
			t.Fatalf("host %s escaped the capped /24", h)
		}
	}
}

func TestHostsInSubnetSmallSubnets(t *testing.T) {
	// /30: network, two hosts, broadcast. Self is one of the two hosts.
	hosts := hostsInSubnet(net.IPv4(10, 0, 0, 1).To4(), net.CIDRMask(30, 32))
	if len(hosts) != 1 || hosts[0] != "10.0.0.2" {
		t.Errorf("got %v, want [10.0.0.2]", hosts)
	}

	// Point-to-point links have no neighbors to scan.
	if hosts := hostsInSubnet(net.IPv4(10, 0, 0, 1).To4(), net.CIDRMask(31, 32)); hosts != nil {
		t.Errorf("/31 should yield no hosts, got %v", hosts)
	}
	if hosts := hostsInSubnet(net.IPv4(10, 0, 0, 1).To4(), net.CIDRMask(32, 32)); hosts != nil {
		t.Errorf("/32 should yield no hosts, got %v", hosts)
	}
}

func TestIPUint32RoundTrip(t *testing.T) {
	for _, s := range []string{"0.0.0.1", "10.1.2.3", "192.168.1.254", "255.255.255.255"} {
		ip := net.ParseIP(s)
		if got := uint32ToIP(ipToUint32(ip)).String(); got != s {
			t.Errorf("round trip of %s = %s", s, got)
		}
	}
}

func TestSubnetScanFindsListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting listener: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	scan := NewSubnetScanDiscovery(ScanConfig{
		Ports: []int{port},
		Hosts: func() ([]string, error) {
			return []string{"127.0.0.1"}, nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := scan.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if server == nil {
		t.Fatal("expected the listener to be found")
	}
	if server.Host != "127.0.0.1" || server.Port != port {
		t.Errorf("found %s:%d, want 127.0.0.1:%d", server.Host, server.Port, port)
	}
	if server.Method != MethodSubnetScan {
		t.Errorf("Method = %q, want %q", server.Method, MethodSubnetScan)
	}
}

func TestSubnetScanNoListener(t *testing.T) {
	// Reserve ports and close them so the probes are refused quickly.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	scan := NewSubnetScanDiscovery(ScanConfig{
		Ports: []int{port},
		Hosts: func() ([]string, error) {
			return []string{"127.0.0.1"}, nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := scan.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if server != nil {
		t.Errorf("expected no result, got %v", server)
	}
}

func TestSubnetScanEmptyHostList(t *testing.T) {
	scan := NewSubnetScanDiscovery(ScanConfig{
		Hosts: func() ([]string, error) { return nil, ErrNoLocalSubnet },
	})

	server, err := scan.Discover(context.Background())
	if err != nil || server != nil {
		t.Errorf("expected (nil, nil) with no subnet, got (%v, %v)", server, err)
	}
}

// hangingDial blocks every probe until its context is done, keeping a
// scan in flight for as long as the test needs.
func hangingDial(started chan<- struct{}) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestSubnetScanCancel(t *testing.T) {
	started := make(chan struct{}, 1)
	scan := NewSubnetScanDiscovery(ScanConfig{
		Ports: []int{8766},
		Hosts: func() ([]string, error) {
			return []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, nil
		},
		Dial: hangingDial(started),
	})

	type result struct {
		server *DiscoveredServer
		err    error
	}
	results := make(chan result, 1)
	go func() {
		server, err := scan.Discover(context.Background())
		results <- result{server, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("no probe started")
	}
	scan.Cancel()

	select {
	case r := <-results:
		if !errors.Is(r.err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got (%v, %v)", r.server, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Discover did not return after Cancel")
	}
}

func TestSubnetScanDeadlineIsNoResult(t *testing.T) {
	started := make(chan struct{}, 1)
	scan := NewSubnetScanDiscovery(ScanConfig{
		Ports: []int{8766},
		Hosts: func() ([]string, error) {
			return []string{"10.0.0.1"}, nil
		},
		Dial: hangingDial(started),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	server, err := scan.Discover(ctx)
	if err != nil || server != nil {
		t.Errorf("expected (nil, nil) on tier timeout, got (%v, %v)", server, err)
	}
}

func TestSubnetScanDefaults(t *testing.T) {
	scan := NewSubnetScanDiscovery(ScanConfig{})
	if scan.Tier() != TierSubnetScan {
		t.Errorf("Tier() = %v", scan.Tier())
	}
	if got := scan.config.Concurrency; got != ScanConcurrency {
		t.Errorf("Concurrency = %d, want %d", got, ScanConcurrency)
	}
	if got := scan.config.ProbeTimeout; got != ProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want %v", got, ProbeTimeout)
	}
	if len(scan.config.Ports) != 2 {
		t.Errorf("Ports = %v, want the two well-known ports", scan.config.Ports)
	}
	if scan.config.Dial == nil {
		t.Error("expected a default probe dialer")
	}
}
