// Package cli implements the mqttctl command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iotcraft/mqttsession/pkg/cliconfig"
	"github.com/iotcraft/mqttsession/pkg/logging"
	"github.com/iotcraft/mqttsession/pkg/session"
)

var (
	// Persistent flags available to all subcommands
	flagBroker   string
	flagPort     int
	flagClientID string
	flagQoS      int
	flagLogLevel string
	flagVerbose  bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

const connectWait = 30 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mqttctl",
	Short: "mqttctl publishes and subscribes to MQTT topics",
	Long: `mqttctl is a command line MQTT client for publishing messages and
watching topics.

Configuration can be provided via flags, environment variables, or a
configuration file. mqttctl looks for .mqttctlrc.yaml in the current
directory, then ~/.config/mqttctl/config.yaml.`,
	// No Run function here means 'mqttctl' with no args prints help.
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBroker, "broker", "", "Broker host (default: localhost)")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "p", 0, "Broker TCP port (default: 1883)")
	rootCmd.PersistentFlags().StringVarP(&flagClientID, "client-id", "i", "", "Client identifier (default: generated)")
	rootCmd.PersistentFlags().IntVarP(&flagQoS, "qos", "q", -1, "Quality of service level, 0-2 (default: 0)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log session diagnostics to stderr")
}

// loadConfig resolves the effective configuration: files and environment
// first, then any flags the user set on top.
func loadConfig(cmd *cobra.Command) (*cliconfig.Config, error) {
	cfg, err := cliconfig.LoadAll()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("broker") {
		cfg.Broker = flagBroker
		cfg.Sources["broker"] = cliconfig.SourceFlag
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
		cfg.Sources["port"] = cliconfig.SourceFlag
	}
	if cmd.Flags().Changed("client-id") {
		cfg.ClientID = flagClientID
		cfg.Sources["clientId"] = cliconfig.SourceFlag
	}
	if cmd.Flags().Changed("qos") {
		cfg.QoS = flagQoS
		cfg.Sources["qos"] = cliconfig.SourceFlag
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
		cfg.Sources["logLevel"] = cliconfig.SourceFlag
	}
	if flagVerbose {
		cfg.Verbose = true
	}

	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid qos %d: must be 0, 1, or 2", cfg.QoS)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID()
	}
	return cfg, nil
}

// defaultClientID generates a unique client id short enough for any
// 3.1-era broker.
func defaultClientID() string {
	id := "mqttctl-" + uuid.NewString()[:8]
	if len(id) > session.MaxClientIDLength {
		id = id[:session.MaxClientIDLength]
	}
	return id
}

// newLogger builds the logger for session diagnostics. Without --verbose
// all diagnostics are dropped.
func newLogger(cfg *cliconfig.Config) *slog.Logger {
	if !cfg.Verbose {
		return logging.Nop()
	}
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.FormatText,
		Output: os.Stderr,
	})
}

// connectSession creates a session from cfg and blocks until the broker
// accepts the connection, the handshake fails, or ctx is done. The caller
// owns the returned session and must Close it.
func connectSession(ctx context.Context, cfg *cliconfig.Config, hooks session.Hooks) (*session.Session, error) {
	s, err := session.New(session.Settings{ClientID: cfg.ClientID},
		session.WithLogger(newLogger(cfg)),
		session.WithHooks(hooks))
	if err != nil {
		return nil, err
	}

	connected := make(chan session.ReasonCode, 1)
	failed := make(chan session.ReasonCode, 1)
	var established atomic.Bool
	err = s.Connect(session.ConnectOptions{
		Address: cfg.Broker,
		Port:    cfg.Port,
		Timeout: connectWait,
		OnConnected: func(code session.ReasonCode) {
			established.Store(true)
			connected <- code
		},
		OnDisconnected: func(code session.ReasonCode) {
			// Before the handshake completes this is a connect failure;
			// afterwards it is a dropped connection for the command to
			// handle.
			if established.Load() {
				if hooks.OnDisconnect != nil {
					hooks.OnDisconnect(code)
				}
				return
			}
			failed <- code
		},
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	select {
	case <-connected:
		return s, nil
	case code := <-failed:
		s.Close()
		return nil, fmt.Errorf("connection to %s:%d failed: %s", cfg.Broker, cfg.Port, code)
	case <-time.After(connectWait):
		s.Close()
		return nil, errors.New("timed out waiting for broker")
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}
