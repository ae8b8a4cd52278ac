package discovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type advertised by UnaMentis servers.
	ServiceType = "_unamentis._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultGatewayPort is the default port of the UnaMentis voice gateway.
	DefaultGatewayPort = 11400

	// DefaultManagementPort is the default port of the management API.
	DefaultManagementPort = 8766

	// ProtocolVersion is advertised in the TXT record "version" key.
	ProtocolVersion = "1.0"
)

// TXT record key constants.
const (
	TXTKeyVersion        = "version"         // Protocol version
	TXTKeyGatewayPort    = "gateway_port"    // Voice gateway port
	TXTKeyManagementPort = "management_port" // Management API port
	TXTKeyHostname       = "hostname"        // Server hostname
	TXTKeyPlatform       = "platform"        // Server platform (macos, linux)
)

// Timing constants.
const (
	// CachedTimeout bounds the cache lookup tier. The lookup itself is a
	// local file read and normally completes immediately.
	CachedTimeout = 1 * time.Second

	// BonjourTimeout is how long the Bonjour tier browses before giving up.
	BonjourTimeout = 5 * time.Second

	// SubnetScanTimeout bounds the full subnet scan fan-out.
	SubnetScanTimeout = 10 * time.Second

	// HealthCheckTimeout bounds each HTTP health validation round-trip,
	// independent of which tier produced the candidate.
	HealthCheckTimeout = 3 * time.Second

	// ProbeTimeout bounds a single TCP connect probe during a subnet scan.
	ProbeTimeout = 500 * time.Millisecond
)

// Subnet scan parameters.
var (
	// ScanPorts is the fixed port list probed per candidate address.
	ScanPorts = []int{DefaultGatewayPort, DefaultManagementPort}
)

// ScanConcurrency is the bounded worker limit for subnet scan probes.
const ScanConcurrency = 64

// Discovery errors.
var (
	ErrCancelled      = errors.New("discovery cancelled")
	ErrInvalidQRCode  = errors.New("invalid QR code")
	ErrMissingHost    = errors.New("missing host")
	ErrInvalidPort    = errors.New("port out of range")
	ErrHealthCheck    = errors.New("health check failed")
	ErrAlreadyRunning = errors.New("advertiser already running")
	ErrNoLocalSubnet  = errors.New("no usable local subnet")
)

// Method identifies how a server was discovered.
type Method string

const (
	// MethodCached means the server came from the persisted cache.
	MethodCached Method = "cached"

	// MethodBonjour means the server was found via mDNS browsing.
	MethodBonjour Method = "bonjour"

	// MethodMultipeer is reserved for peer-to-peer discovery; no tier
	// currently produces it but cached records may still carry it.
	MethodMultipeer Method = "multipeer"

	// MethodSubnetScan means the server was found by probing the subnet.
	MethodSubnetScan Method = "subnet_scan"

	// MethodManual means the user entered the address by hand.
	MethodManual Method = "manual"

	// MethodQRCode means the address was scanned from a QR code.
	MethodQRCode Method = "qr_code"
)

// Valid reports whether m is a known discovery method.
func (m Method) Valid() bool {
	switch m {
	case MethodCached, MethodBonjour, MethodMultipeer,
		MethodSubnetScan, MethodManual, MethodQRCode:
		return true
	}
	return false
}

// Tier identifies one strategy in the fixed-priority fallback chain.
// Manual and QR entry are direct paths, not tiers.
type Tier uint8

const (
	// TierCached returns the last persisted server instantly.
	TierCached Tier = iota

	// TierBonjour browses for local-network service advertisements.
	TierBonjour

	// TierSubnetScan probes the local subnet across the fixed port list.
	TierSubnetScan
)

// Tiers returns the tiers in priority order. The ordering is a
// cost/likelihood trade-off fixed by product policy: cheap deterministic
// cache first, near-zero-cost broadcast second, brute-force scan last.
func Tiers() []Tier {
	return []Tier{TierCached, TierBonjour, TierSubnetScan}
}

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierCached:
		return "cached"
	case TierBonjour:
		return "bonjour"
	case TierSubnetScan:
		return "subnet_scan"
	default:
		return "unknown"
	}
}

// DisplayName returns the user-facing tier name.
func (t Tier) DisplayName() string {
	switch t {
	case TierCached:
		return "Saved Server"
	case TierBonjour:
		return "Network Discovery"
	case TierSubnetScan:
		return "Subnet Scan"
	default:
		return "Unknown"
	}
}

// Timeout returns the tier's fixed discovery timeout. Exceeding it is
// equivalent to "no result", not an error.
func (t Tier) Timeout() time.Duration {
	switch t {
	case TierCached:
		return CachedTimeout
	case TierBonjour:
		return BonjourTimeout
	case TierSubnetScan:
		return SubnetScanTimeout
	default:
		return BonjourTimeout
	}
}

// Method returns the discovery method for servers produced by this tier.
func (t Tier) Method() Method {
	switch t {
	case TierCached:
		return MethodCached
	case TierBonjour:
		return MethodBonjour
	case TierSubnetScan:
		return MethodSubnetScan
	default:
		return MethodManual
	}
}

// DiscoveredServer is an immutable record of a server candidate.
// Equality for de-duplication purposes is by host and port, not by ID.
type DiscoveredServer struct {
	// ID uniquely identifies this discovery record.
	ID string

	// Name is the display name (instance name, user label, or hostname).
	Name string

	// Host is the IP address or hostname.
	Host string

	// Port is the gateway port.
	Port int

	// Method records how the server was discovered.
	Method Method

	// DiscoveredAt is when the record was created.
	DiscoveredAt time.Time

	// Metadata carries free-form string keys (TXT record values, QR fields).
	Metadata map[string]string
}

// NewDiscoveredServer creates a server record with a generated ID and
// the current timestamp.
func NewDiscoveredServer(host string, port int, name string, method Method) *DiscoveredServer {
	return &DiscoveredServer{
		ID:           uuid.NewString(),
		Name:         name,
		Host:         host,
		Port:         port,
		Method:       method,
		DiscoveredAt: time.Now(),
	}
}

// BaseURL returns the server's HTTP base URL.
func (s *DiscoveredServer) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// HealthURL returns the health check endpoint URL.
func (s *DiscoveredServer) HealthURL() string {
	return s.BaseURL() + "/health"
}

// Equal reports whether two records refer to the same server address.
func (s *DiscoveredServer) Equal(other *DiscoveredServer) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Host == other.Host && s.Port == other.Port
}

// String returns a short human-readable description.
func (s *DiscoveredServer) String() string {
	if s.Name != "" {
		return fmt.Sprintf("%s (%s:%d, %s)", s.Name, s.Host, s.Port, s.Method)
	}
	return fmt.Sprintf("%s:%d (%s)", s.Host, s.Port, s.Method)
}

// StateKind identifies the orchestrator state variant.
type StateKind uint8

const (
	// StateIdle - no discovery attempt in progress.
	StateIdle StateKind = iota

	// StateDiscovering - an attempt has started, no tier active yet.
	StateDiscovering

	// StateTryingTier - a specific tier's discover call is in flight.
	StateTryingTier

	// StateConnected - a validated server is held (terminal success).
	StateConnected

	// StateManualConfigRequired - all tiers exhausted (terminal failure
	// requiring user input).
	StateManualConfigRequired

	// StateFailed - a direct manual/QR configuration failed.
	StateFailed
)

// String returns the state kind name.
func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateTryingTier:
		return "trying_tier"
	case StateConnected:
		return "connected"
	case StateManualConfigRequired:
		return "manual_config_required"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the closed state variant published by the Manager.
// Exactly one state holds at a time; transitions are driven solely by
// the orchestrator.
type State struct {
	// Kind selects the variant.
	Kind StateKind

	// Tier is set when Kind is StateTryingTier.
	Tier Tier

	// Server is set when Kind is StateConnected.
	Server *DiscoveredServer

	// Reason is set when Kind is StateFailed.
	Reason string
}

// Idle returns the idle state.
func Idle() State { return State{Kind: StateIdle} }

// Discovering returns the discovering state.
func Discovering() State { return State{Kind: StateDiscovering} }

// TryingTier returns the state for an in-flight tier.
func TryingTier(t Tier) State { return State{Kind: StateTryingTier, Tier: t} }

// Connected returns the terminal success state.
func Connected(server *DiscoveredServer) State {
	return State{Kind: StateConnected, Server: server}
}

// ManualConfigRequired returns the terminal tier-exhaustion state.
func ManualConfigRequired() State { return State{Kind: StateManualConfigRequired} }

// Failed returns the terminal failure state for direct configuration.
func Failed(reason string) State { return State{Kind: StateFailed, Reason: reason} }

// String returns a human-readable state description.
func (s State) String() string {
	switch s.Kind {
	case StateTryingTier:
		return fmt.Sprintf("trying_tier(%s)", s.Tier)
	case StateConnected:
		return fmt.Sprintf("connected(%s)", s.Server)
	case StateFailed:
		return fmt.Sprintf("failed(%s)", s.Reason)
	default:
		return s.Kind.String()
	}
}
