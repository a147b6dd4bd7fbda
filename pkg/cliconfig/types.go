// Package cliconfig provides configuration types and loading for the
// mqttctl CLI.
package cliconfig

// Config is the complete configuration for the mqttctl CLI.
// Configuration values can come from multiple sources with the following
// precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Local config file (.mqttctlrc.yaml in current directory)
// 4. Global config file (~/.config/mqttctl/config.yaml)
// 5. Default values (lowest priority)
type Config struct {
	// Broker connection settings
	Broker   string `yaml:"broker" json:"broker"`
	Port     int    `yaml:"port" json:"port"`
	ClientID string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	QoS      int    `yaml:"qos" json:"qos"`

	// Logging settings
	LogLevel string `yaml:"logLevel" json:"logLevel"`
	Verbose  bool   `yaml:"verbose" json:"verbose"`

	// Sources tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`
}

// Config value origins.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFlag    = "flag"
)

// NewDefault returns a Config populated with default values.
func NewDefault() *Config {
	return &Config{
		Broker:   "localhost",
		Port:     1883,
		QoS:      0,
		LogLevel: "info",
		Sources: map[string]string{
			"broker":   SourceDefault,
			"port":     SourceDefault,
			"qos":      SourceDefault,
			"logLevel": SourceDefault,
		},
	}
}

// Merge overlays the non-zero values of src onto dst, recording source
// for each value taken.
func Merge(dst, src *Config, source string) {
	if dst.Sources == nil {
		dst.Sources = make(map[string]string)
	}
	if src.Broker != "" {
		dst.Broker = src.Broker
		dst.Sources["broker"] = source
	}
	if src.Port != 0 {
		dst.Port = src.Port
		dst.Sources["port"] = source
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
		dst.Sources["clientId"] = source
	}
	if src.QoS != 0 {
		dst.QoS = src.QoS
		dst.Sources["qos"] = source
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
		dst.Sources["logLevel"] = source
	}
	if src.Verbose {
		dst.Verbose = true
		dst.Sources["verbose"] = source
	}
}
