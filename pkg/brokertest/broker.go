package brokertest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/iotcraft/mqttsession/pkg/logging"
)

// Broker is an embedded MQTT broker for tests and examples. It accepts
// every client and, through its inline client, can publish messages into
// the broker as if they came from another peer.
type Broker struct {
	server *mqtt.Server
	log    *slog.Logger

	mu      sync.RWMutex
	port    int
	running bool
}

// Option customizes a Broker.
type Option func(*Broker)

// WithLogger sets the logger for broker diagnostics. Defaults to a no-op
// logger so test output stays quiet.
func WithLogger(log *slog.Logger) Option {
	return func(b *Broker) {
		if log != nil {
			b.log = log
		}
	}
}

// New creates a broker that will listen on the given TCP port. Port 0
// picks a free port when Start is called.
func New(port int, opts ...Option) (*Broker, error) {
	b := &Broker{
		port: port,
		log:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.server = mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       b.log,
	})
	if err := b.server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to add allow hook: %w", err)
	}
	return b, nil
}

// Start begins serving. It returns once the listener is bound, so Port
// and Addr report the live address immediately after.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("broker is already running")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if b.port == 0 {
		port, err := freePort()
		if err != nil {
			return err
		}
		b.port = port
	}

	listener := listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("mqtt-%d", b.port),
		Address: fmt.Sprintf(":%d", b.port),
	})
	if err := b.server.AddListener(listener); err != nil {
		return fmt.Errorf("failed to add listener: %w", err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.log.Error("MQTT server error", "error", err)
		}
	}()

	b.running = true
	return nil
}

// Stop shuts the broker down, waiting at most timeout for in-flight
// client disconnections.
func (b *Broker) Stop(ctx context.Context, timeout time.Duration) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.server.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close server: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}

// Publish injects a message into the broker through its inline client, as
// if a remote peer had published it.
func (b *Broker) Publish(topic string, payload []byte, qos byte, retain bool) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()

	if !running {
		return errors.New("broker is not running")
	}
	return b.server.Publish(topic, payload, retain, qos)
}

// IsRunning reports whether the broker is serving.
func (b *Broker) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Port returns the TCP port the broker listens on. Before Start it is
// the configured port, which may be 0.
func (b *Broker) Port() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.port
}

// Addr returns the broker's listen address, for example ":1883".
func (b *Broker) Addr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf(":%d", b.port)
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
