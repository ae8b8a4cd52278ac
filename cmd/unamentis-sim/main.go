// Command unamentis-sim runs a simulated UnaMentis server for testing
// discovery clients.
//
// It serves the /health endpoint the discovery chain validates against,
// an /info endpoint describing the instance, and advertises itself over
// Bonjour as _unamentis._tcp.
//
// Usage:
//
//	unamentis-sim [flags]
//
// Flags:
//
//	-port int        Management/API listen port (default 8766)
//	-gateway int     Advertised gateway port (default 11400)
//	-name string     Instance name (default "UnaMentis-<hostname>")
//	-iface string    Network interface to advertise on
//	-no-advertise    Serve HTTP without the mDNS advertisement
//	-log-level string Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Standard simulated server, discoverable via Bonjour
//	unamentis-sim
//
//	# Discoverable only via subnet scan
//	unamentis-sim -no-advertise
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/unamentis/unamentis-go/pkg/discovery"
)

// Config holds the simulator configuration.
type Config struct {
	Port        int
	GatewayPort int
	Name        string
	Interface   string
	NoAdvertise bool
	LogLevel    string
}

var config Config

func init() {
	flag.IntVar(&config.Port, "port", discovery.DefaultManagementPort, "Management/API listen port")
	flag.IntVar(&config.GatewayPort, "gateway", discovery.DefaultGatewayPort, "Advertised gateway port")
	flag.StringVar(&config.Name, "name", "", "Instance name (default \"UnaMentis-<hostname>\")")
	flag.StringVar(&config.Interface, "iface", "", "Network interface to advertise on")
	flag.BoolVar(&config.NoAdvertise, "no-advertise", false, "Serve HTTP without the mDNS advertisement")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	log.Println("UnaMentis Simulated Server")
	log.Println("==========================")
	log.Printf("Port: %d", config.Port)

	startedAt := time.Now()
	hostname, _ := os.Hostname()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":  "ok",
			"version": discovery.ProtocolVersion,
		})
	})
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"name":            config.Name,
			"hostname":        hostname,
			"platform":        runtime.GOOS,
			"version":         discovery.ProtocolVersion,
			"gateway_port":    config.GatewayPort,
			"management_port": config.Port,
			"uptime_seconds":  int(time.Since(startedAt).Seconds()),
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving /health and /info on :%d", config.Port)
		errCh <- server.ListenAndServe()
	}()

	var advertiser *discovery.Advertiser
	if !config.NoAdvertise {
		advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			InstanceName:   config.Name,
			GatewayPort:    config.GatewayPort,
			ManagementPort: config.Port,
			Interface:      config.Interface,
		})
		if err := advertiser.Start(); err != nil {
			log.Fatalf("Failed to advertise: %v", err)
		}
		log.Printf("Advertising %s on %s", discovery.ServiceType, discovery.Domain)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case err := <-errCh:
		log.Printf("HTTP server stopped: %v", err)
	}

	log.Println("Shutting down...")

	if advertiser != nil {
		advertiser.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	log.Println("Goodbye!")
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
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
