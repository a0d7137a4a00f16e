// Package config loads the broker's tunable parameters from the
// environment, following JKI757-CatLocator/go-mqtt-server's
// internal/config.Load shape exactly: typed defaults, one os.Getenv check
// per field, fmt.Errorf-wrapped parse failures.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config lists the tunable parameters for the broker.
type Config struct {
	MQTTBindAddress string
	HTTPBindAddress string
	AdvertiseMDNS   bool
	LogLevel        string
}

const (
	defaultMQTTBindAddress = ":1883"
	defaultHTTPBindAddress = ":8080"
	defaultAdvertiseMDNS   = true
	defaultLogLevel        = "info"
)

// Load derives configuration values from environment variables, falling
// back to defaults.
func Load() (Config, error) {
	cfg := Config{
		MQTTBindAddress: defaultMQTTBindAddress,
		HTTPBindAddress: defaultHTTPBindAddress,
		AdvertiseMDNS:   defaultAdvertiseMDNS,
		LogLevel:        defaultLogLevel,
	}

	if v := os.Getenv("DEVICELINK_MQTT_BIND"); v != "" {
		cfg.MQTTBindAddress = v
	}

	if v := os.Getenv("DEVICELINK_HTTP_BIND"); v != "" {
		cfg.HTTPBindAddress = v
	}

	if v := os.Getenv("DEVICELINK_ADVERTISE_MDNS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEVICELINK_ADVERTISE_MDNS: %w", err)
		}
		cfg.AdvertiseMDNS = b
	}

	if v := os.Getenv("DEVICELINK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}
