// Package discovery implements multi-tier discovery of UnaMentis servers
// on the local network.
//
// # Discovery Tiers
//
// The Manager tries a fixed-priority chain of tiers, connecting to the
// first candidate that passes health validation:
//
//   - Cached: the last successfully connected server, persisted on disk.
//   - Bonjour: mDNS/DNS-SD browse for _unamentis._tcp instances.
//   - Subnet scan: TCP connect probes across the local /24 on the
//     well-known UnaMentis ports.
//
// Each tier runs under its own timeout. A timeout advances the chain to
// the next tier; an explicit cancel unwinds the whole attempt. When every
// tier is exhausted the Manager lands in the manual-configuration state.
//
// # Validation
//
// Every candidate, regardless of how it was found, is validated with a
// GET request against its /health endpoint before the Manager will
// connect to it. Only validated candidates appear in DiscoveredServers.
//
// # Direct Entry
//
// ConfigureManually and ConfigureFromQRCode bypass the tier chain but not
// validation. The QR payload is a JSON object:
//
//	{"host": "192.168.1.10", "port": 8766, "name": "Office Server", "timestamp": ...}
//
// host and port are required; timestamp accepts RFC 3339 or epoch seconds.
//
// # Advertising
//
// The Advertiser is the server-side counterpart: it registers an
// _unamentis._tcp instance named UnaMentis-<hostname> with TXT records
// for the protocol version, gateway and management ports, hostname, and
// platform.
package discovery
