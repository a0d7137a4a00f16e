// Package mdnsadvert advertises the broker's bound MQTT port over
// mDNS/DNS-SD so LAN devices can discover it without a hardcoded address.
// Adapted from JKI757-CatLocator/go-mqtt-server's internal/app.startMDNS/
// stopMDNS: same grandcat/zeroconf registration and instance/host
// sanitizing helpers, retargeted to advertise the MQTT listener's port
// instead of the teacher's HTTP port, with its own service type.
package mdnsadvert

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	serviceType = "_devicelink-mqtt._tcp"
	domain      = "local."
)

// Advertiser owns the registered zeroconf server, if any.
type Advertiser struct {
	logger *slog.Logger
	server *zeroconf.Server
}

// New constructs an idle Advertiser.
func New(logger *slog.Logger) *Advertiser {
	return &Advertiser{logger: logger}
}

// Start registers the mDNS advertisement for mqttPort. Calling Start again
// replaces any existing registration.
func (a *Advertiser) Start(mqttPort int) error {
	if mqttPort <= 0 {
		return fmt.Errorf("invalid port %d", mqttPort)
	}

	a.Stop()

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "devicelink"
	}

	instance := sanitizeInstance(fmt.Sprintf("DeviceLink Broker (%s)", hostname))
	hostLabel := sanitizeHost(hostname)
	hostFQDN := hostLabel
	if !strings.Contains(hostFQDN, ".") {
		hostFQDN = hostLabel + ".local"
	}

	txt := []string{
		fmt.Sprintf("mqtt_port=%d", mqttPort),
		"tls=0",
		"proto=mqtt3.1.1",
		fmt.Sprintf("host=%s", hostFQDN),
	}

	server, err := zeroconf.Register(instance, serviceType, domain, mqttPort, txt, nil)
	if err != nil {
		return err
	}

	a.server = server
	a.logger.Info("mDNS advertisement started", "instance", instance, "port", mqttPort)
	return nil
}

// Stop unregisters the advertisement, if one is active. Safe to call more
// than once.
func (a *Advertiser) Stop() {
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info("mDNS advertisement stopped")
	a.server = nil
}

func sanitizeInstance(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, ".", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	if cleaned == "" {
		cleaned = "DeviceLink Broker"
	}
	const maxLen = 63
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}

func sanitizeHost(name string) string {
	cleaned := strings.TrimSpace(strings.ToLower(name))
	replacer := strings.NewReplacer(" ", "-", "_", "-", "\n", "", "\r", "")
	cleaned = replacer.Replace(cleaned)
	if cleaned == "" {
		cleaned = "devicelink"
	}
	// Host labels must be <=63 characters.
	runes := []rune(cleaned)
	if len(runes) > 63 {
		cleaned = string(runes[:63])
	}
	return cleaned
}
