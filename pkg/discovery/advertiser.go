package discovery

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser announces a UnaMentis server on the local network via
// mDNS so clients can discover it through the Bonjour tier.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// AdvertiserConfig configures the mDNS advertisement.
type AdvertiserConfig struct {
	// InstanceName is the advertised instance name.
	// Default: "UnaMentis-<hostname>".
	InstanceName string

	// GatewayPort is the advertised service port.
	// Default: DefaultGatewayPort.
	GatewayPort int

	// ManagementPort is published in the TXT record.
	// Default: DefaultManagementPort.
	ManagementPort int

	// Platform is published in the TXT record.
	// Default: runtime.GOOS.
	Platform string

	// Interface specifies which network interface to advertise on.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// NewAdvertiser creates an advertiser. Start must be called to begin
// announcing.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.InstanceName == "" {
		config.InstanceName = defaultInstanceName()
	}
	if config.GatewayPort == 0 {
		config.GatewayPort = DefaultGatewayPort
	}
	if config.ManagementPort == 0 {
		config.ManagementPort = DefaultManagementPort
	}
	if config.Platform == "" {
		config.Platform = runtime.GOOS
	}
	if config.TTL == 0 {
		config.TTL = 120 * time.Second
	}
	return &Advertiser{config: config}
}

// Start registers the _unamentis._tcp service.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyRunning
	}

	hostname, _ := os.Hostname()
	txt := []string{
		TXTKeyVersion + "=" + ProtocolVersion,
		TXTKeyGatewayPort + "=" + strconv.Itoa(a.config.GatewayPort),
		TXTKeyManagementPort + "=" + strconv.Itoa(a.config.ManagementPort),
		TXTKeyHostname + "=" + hostname,
		TXTKeyPlatform + "=" + a.config.Platform,
	}

	opts := []zeroconf.ServerOption{
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	}

	server, err := zeroconf.Register(
		a.config.InstanceName,
		ServiceType,
		Domain,
		a.config.GatewayPort,
		txt,
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the advertisement. Stopping an idle advertiser is a no-op.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning reports whether the service is currently advertised.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// interfaces returns the network interfaces to advertise on.
// Returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// defaultInstanceName builds "UnaMentis-<hostname>" with any .local
// suffix removed.
func defaultInstanceName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "UnaMentis"
	}
	hostname = strings.TrimSuffix(hostname, ".local")
	return "UnaMentis-" + hostname
}
