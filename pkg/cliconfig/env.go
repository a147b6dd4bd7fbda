package cliconfig

import (
	"os"
	"strconv"
)

// Environment variables recognized by LoadEnv.
const (
	EnvBroker   = "MQTTCTL_BROKER"
	EnvPort     = "MQTTCTL_PORT"
	EnvClientID = "MQTTCTL_CLIENT_ID"
	EnvQoS      = "MQTTCTL_QOS"
	EnvLogLevel = "MQTTCTL_LOG_LEVEL"
)

// LoadEnv overlays environment variables onto cfg. Unset and malformed
// variables are ignored.
func LoadEnv(cfg *Config) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}
	if v := os.Getenv(EnvBroker); v != "" {
		cfg.Broker = v
		cfg.Sources["broker"] = SourceEnv
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
			cfg.Sources["port"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvClientID); v != "" {
		cfg.ClientID = v
		cfg.Sources["clientId"] = SourceEnv
	}
	if v := os.Getenv(EnvQoS); v != "" {
		if qos, err := strconv.Atoi(v); err == nil && qos >= 0 && qos <= 2 {
			cfg.QoS = qos
			cfg.Sources["qos"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
		cfg.Sources["logLevel"] = SourceEnv
	}
}
