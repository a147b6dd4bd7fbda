package engine

import (
	"errors"
	"log/slog"
	"time"
)

// Engine-level sentinel errors.
var (
	// ErrNotConnected is returned by operations that need an established
	// network connection when none exists.
	ErrNotConnected = errors.New("engine: not connected")

	// ErrUnsupportedProtocol is returned when a binding cannot speak the
	// requested protocol revision.
	ErrUnsupportedProtocol = errors.New("engine: unsupported protocol version")
)

// QoS is the MQTT quality of service level for a publish or subscription.
type QoS byte

// Quality of service levels.
const (
	QoS0 QoS = iota // at most once
	QoS1            // at least once
	QoS2            // exactly once
)

// Protocol selects the MQTT protocol revision spoken on the wire.
type Protocol uint8

// Protocol revisions. ProtocolV311 is the zero value and the default.
const (
	ProtocolV311 Protocol = iota
	ProtocolV31
	ProtocolV5
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV31:
		return "3.1"
	case ProtocolV5:
		return "5.0"
	default:
		return "3.1.1"
	}
}

// Tuple returns the protocol revision as a three-component version.
func (p Protocol) Tuple() [3]int {
	switch p {
	case ProtocolV31:
		return [3]int{3, 1, 0}
	case ProtocolV5:
		return [3]int{5, 0, 0}
	default:
		return [3]int{3, 1, 1}
	}
}

// Message is a single inbound application message as delivered by the
// engine. The payload slice is only valid for the duration of the
// notification; receivers that keep it must copy.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       QoS
	Retain    bool
	ID        uint16
	Duplicate bool
}

// Callbacks receives engine notifications. Every field is optional; nil
// entries are skipped. Invocations happen on the engine's network
// goroutines and must not block.
type Callbacks struct {
	// OnConnected fires when the broker acknowledges the connection.
	OnConnected func(code ReasonCode)

	// OnDisconnected fires when the connection ends, whether requested
	// locally, dropped by the broker, or because the initial handshake
	// failed. CodeSuccess means a clean, locally requested disconnect.
	OnDisconnected func(code ReasonCode)

	// OnMessage fires for every inbound application message.
	OnMessage func(msg Message)

	// OnPublished fires when an outbound publish completes its QoS
	// handshake, carrying the engine-assigned message id.
	OnPublished func(mid uint16)

	// OnSubscribed fires when the broker acknowledges a subscription,
	// carrying the granted quality of service.
	OnSubscribed func(topic string, granted QoS)

	// OnUnsubscribed fires when the broker acknowledges an unsubscribe.
	OnUnsubscribed func(topic string)
}

// Config holds the per-handle settings fixed at engine construction.
type Config struct {
	// ClientID is sent verbatim to the broker. Empty means the broker
	// assigns one.
	ClientID string

	// Protocol is the MQTT revision to speak.
	Protocol Protocol

	// CleanSession asks the broker to discard subscription state and
	// queued messages when the connection ends.
	CleanSession bool

	// Logger receives engine diagnostics. Nil disables them.
	Logger *slog.Logger
}

// ConnectConfig holds the per-connection settings supplied to Connect.
type ConnectConfig struct {
	// Address is the broker host. Defaults to "localhost".
	Address string

	// Port is the broker TCP port. Defaults to 1883.
	Port int

	// Timeout bounds the initial connection handshake. Defaults to 60s.
	Timeout time.Duration
}

// Engine is the narrow contract a session drives. Implementations own
// framing, transport, packet-level retries, and keep-alive; all methods
// are non-blocking with respect to network round-trips and report
// completion through the Callbacks registered at construction.
type Engine interface {
	// Connect starts the background I/O loop and the connection
	// handshake. The outcome arrives as an OnConnected or OnDisconnected
	// notification.
	Connect(cfg ConnectConfig) error

	// Disconnect requests a clean disconnect. The OnDisconnected
	// notification confirms it asynchronously.
	Disconnect() error

	// Publish enqueues an outbound message and returns the
	// engine-assigned message id (0 for QoS 0).
	Publish(topic string, payload []byte, qos QoS, retain bool) (uint16, error)

	// Subscribe enqueues a subscription request and returns the
	// engine-assigned subscription id.
	Subscribe(topic string, qos QoS) (int, error)

	// Unsubscribe enqueues removal of a subscription.
	Unsubscribe(topic string) error

	// Version reports the underlying client library version.
	Version() [3]int

	// Close releases the handle. The engine must not be used afterwards.
	Close()
}

// Factory creates an Engine wired to the given callbacks. A session owns
// exactly one engine for its whole lifetime.
type Factory func(cfg Config, cb Callbacks) (Engine, error)
