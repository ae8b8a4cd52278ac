// Command unamentis-discover locates a UnaMentis server on the local
// network and reports the connection endpoint.
//
// Discovery runs through the standard tier chain: the cached server from
// the last successful connection, then Bonjour browsing, then a subnet
// scan. Every candidate is health-validated before it is accepted.
//
// Usage:
//
//	unamentis-discover [flags]
//
// Flags:
//
//	-config string       Configuration file path (YAML)
//	-cache-file string   Server cache file path
//	-event-log string    Append discovery events to this CBOR log file
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-interactive         Enable interactive command mode
//	-clear-cache         Clear the cached server before starting
//	-host string         Skip discovery and connect to this host directly
//	-port int            Port for -host (default 8766)
//	-name string         Display name for -host
//	-qr string           Skip discovery and connect from a QR payload (JSON)
//	-iface string        Network interface to browse and advertise on
//
// Examples:
//
//	# Discover a server, trying the cache, Bonjour, then a subnet scan
//	unamentis-discover
//
//	# Interactive session
//	unamentis-discover -interactive
//
//	# Manual configuration, bypassing discovery
//	unamentis-discover -host 10.0.0.5 -port 8766
//
//	# Configure from a scanned QR code
//	unamentis-discover -qr '{"host":"10.0.0.5","port":8766,"name":"Office"}'
//
//	# Record events for later inspection
//	unamentis-discover -event-log /tmp/discovery.cbor -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	unalog "github.com/unamentis/unamentis-go/pkg/log"

	"github.com/unamentis/unamentis-go/pkg/discovery"
	"github.com/unamentis/unamentis-go/pkg/persistence"
)

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.CacheFile, "cache-file", "", "Server cache file path")
	flag.StringVar(&config.EventLog, "event-log", "", "Append discovery events to this CBOR log file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
	flag.BoolVar(&config.ClearCache, "clear-cache", false, "Clear the cached server before starting")
	flag.StringVar(&config.Host, "host", "", "Skip discovery and connect to this host directly")
	flag.IntVar(&config.Port, "port", discovery.DefaultManagementPort, "Port for -host")
	flag.StringVar(&config.Name, "name", "", "Display name for -host")
	flag.StringVar(&config.QRPayload, "qr", "", "Skip discovery and connect from a QR payload (JSON)")
	flag.StringVar(&config.Interface, "iface", "", "Network interface to browse on")
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile, &config); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if config.CacheFile == "" {
		config.CacheFile = defaultCachePath()
	}

	store := persistence.NewServerCacheStore(config.CacheFile)

	logger, closeLogger, err := buildLogger(config)
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer closeLogger()

	manager := discovery.NewManager(discovery.ManagerConfig{
		Tiers: []discovery.TierDiscoverer{
			discovery.NewCachedServerDiscovery(store),
			discovery.NewBonjourDiscovery(discovery.BonjourConfig{Interface: config.Interface}),
			discovery.NewSubnetScanDiscovery(discovery.ScanConfig{}),
		},
		Logger: logger,
	})

	if config.ClearCache {
		log.Println("Clearing cached server...")
		if err := manager.ClearCache(); err != nil {
			log.Printf("Warning: failed to clear cache: %v", err)
		}
	}

	manager.OnStateChange(func(old, new discovery.State) {
		log.Printf("State: %s -> %s", old, new)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the attempt (and exit) on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			manager.CancelDiscovery()
			cancel()
		case <-ctx.Done():
		}
	}()

	switch {
	case config.Interactive:
		session, err := newSession(manager)
		if err != nil {
			log.Fatalf("Failed to start interactive session: %v", err)
		}
		log.SetOutput(session.Stdout())
		session.Run(ctx, cancel)

	case config.Host != "":
		if err := manager.ConfigureManually(ctx, config.Host, config.Port, config.Name); err != nil {
			log.Fatalf("Manual configuration failed: %v", err)
		}
		reportConnected(manager)

	case config.QRPayload != "":
		if err := manager.ConfigureFromQRCode(ctx, []byte(config.QRPayload)); err != nil {
			log.Fatalf("QR configuration failed: %v", err)
		}
		reportConnected(manager)

	default:
		final := manager.StartDiscovery(ctx)
		switch final.Kind {
		case discovery.StateConnected:
			reportConnected(manager)
		case discovery.StateManualConfigRequired:
			log.Println("No server found. Configure manually with -host and -port.")
			os.Exit(1)
		case discovery.StateIdle:
			log.Println("Discovery cancelled.")
			os.Exit(130)
		}
	}
}

// reportConnected prints the winning server to stdout so the endpoint
// can be consumed by scripts.
func reportConnected(manager *discovery.Manager) {
	server := manager.ConnectedServer()
	if server == nil {
		return
	}
	log.Printf("Connected: %s", server)
	fmt.Println(server.BaseURL())
}

// buildLogger assembles the discovery event logger: slog for console
// diagnostics at debug level, plus an optional CBOR file log.
func buildLogger(cfg Config) (unalog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	console := unalog.NewSlogAdapter(slog.New(handler))

	if cfg.EventLog == "" {
		return console, func() {}, nil
	}

	file, err := unalog.NewFileLogger(cfg.EventLog)
	if err != nil {
		return nil, nil, err
	}
	return unalog.NewMultiLogger(console, file), func() { file.Close() }, nil
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "unamentis", "server_cache.json")
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}
