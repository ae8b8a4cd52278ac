package discovery

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestNewAdvertiserDefaults(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{})

	if !strings.HasPrefix(a.config.InstanceName, "UnaMentis") {
		t.Errorf("InstanceName = %q, want UnaMentis prefix", a.config.InstanceName)
	}
	if a.config.GatewayPort != DefaultGatewayPort {
		t.Errorf("GatewayPort = %d, want %d", a.config.GatewayPort, DefaultGatewayPort)
	}
	if a.config.ManagementPort != DefaultManagementPort {
		t.Errorf("ManagementPort = %d, want %d", a.config.ManagementPort, DefaultManagementPort)
	}
	if a.config.Platform != runtime.GOOS {
		t.Errorf("Platform = %q, want %q", a.config.Platform, runtime.GOOS)
	}
	if a.config.TTL != 120*time.Second {
		t.Errorf("TTL = %v", a.config.TTL)
	}
}

func TestNewAdvertiserOverrides(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{
		InstanceName:   "UnaMentis-lab",
		GatewayPort:    12000,
		ManagementPort: 12001,
		Platform:       "linux",
	})

	if a.config.InstanceName != "UnaMentis-lab" {
		t.Errorf("InstanceName = %q", a.config.InstanceName)
	}
	if a.config.GatewayPort != 12000 || a.config.ManagementPort != 12001 {
		t.Errorf("ports = %d/%d", a.config.GatewayPort, a.config.ManagementPort)
	}
}

func TestAdvertiserIdleLifecycle(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{})

	if a.IsRunning() {
		t.Error("new advertiser reports running")
	}
	// Stopping an advertiser that never started is a no-op.
	a.Stop()
	if a.IsRunning() {
		t.Error("stopped advertiser reports running")
	}
}

func TestDefaultInstanceName(t *testing.T) {
	name := defaultInstanceName()
	if !strings.HasPrefix(name, "UnaMentis") {
		t.Errorf("defaultInstanceName() = %q", name)
	}
	if strings.HasSuffix(name, ".local") {
		t.Errorf("instance name %q keeps .local suffix", name)
	}
}
