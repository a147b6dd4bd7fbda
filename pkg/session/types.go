package session

import (
	"time"

	"github.com/iotcraft/mqttsession/pkg/engine"
)

// QoS is the MQTT quality of service level.
type QoS = engine.QoS

// Quality of service levels.
const (
	QoS0 = engine.QoS0 // at most once
	QoS1 = engine.QoS1 // at least once
	QoS2 = engine.QoS2 // exactly once
)

// Protocol selects the MQTT protocol revision.
type Protocol = engine.Protocol

// Protocol revisions. V311 is the zero value and the default.
const (
	V311 = engine.ProtocolV311
	V31  = engine.ProtocolV31
	V5   = engine.ProtocolV5
)

// ReasonCode is a numeric engine result code.
type ReasonCode = engine.ReasonCode

// CleanupPolicy controls whether the broker preserves or discards the
// client's subscriptions and queued messages when it disconnects.
type CleanupPolicy uint8

const (
	// SessionCleanup discards all state on disconnect (the default).
	SessionCleanup CleanupPolicy = iota
	// SessionPreserve keeps subscriptions and queued messages across
	// disconnects.
	SessionPreserve
)

// MaxClientIDLength is the longest client identifier accepted at session
// construction. MQTT 3.1 brokers are only required to accept 23 bytes.
const MaxClientIDLength = 23

// Settings fix a session's identity at construction time.
type Settings struct {
	// ClientID must be unique per broker. Empty lets the broker assign
	// a random one. At most MaxClientIDLength bytes.
	ClientID string

	// Protocol is the MQTT revision to speak. Defaults to V311.
	Protocol Protocol

	// Policy selects whether the broker keeps session state across
	// disconnects. Defaults to SessionCleanup.
	Policy CleanupPolicy
}

// Topic identifies a pub/sub channel. The caller owns the value; Subscribe
// and Publish write the engine-assigned identifier back into ID.
type Topic struct {
	// Name of the topic. Must be non-empty.
	Name string

	// Retain marks outbound messages on this topic as retained.
	Retain bool

	// ID is set when a subscribe or publish is accepted by the engine.
	ID int
}

// Message is an inbound application message, valid only for the duration
// of the handler invocation. Handlers that keep any field beyond the
// callback must Clone first.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       QoS
	Retain    bool
	ID        uint16
	Duplicate bool
}

// Clone returns a deep copy of the message that stays valid after the
// handler returns.
func (m Message) Clone() Message {
	c := m
	c.Payload = make([]byte, len(m.Payload))
	copy(c.Payload, m.Payload)
	return c
}

// MessageHandler consumes an inbound message. It runs on the engine's
// notification goroutine and must not block indefinitely: while it runs,
// no further protocol processing (including keep-alive pings) happens for
// this session.
type MessageHandler func(msg Message)

// ConnectionHandler observes a connection or disconnection, with the
// engine reason code. Same scheduling constraints as MessageHandler.
type ConnectionHandler func(code ReasonCode)

// Status is the session connection state.
type Status uint8

const (
	// StatusDisconnected is the initial state.
	StatusDisconnected Status = iota
	// StatusConnected means the broker acknowledged the connection.
	StatusConnected
	// StatusFaulted is terminal: the session never obtained a usable
	// engine handle and must be reconstructed.
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusFaulted:
		return "faulted"
	default:
		return "disconnected"
	}
}

// ConnectOptions parameterize a single Connect call.
type ConnectOptions struct {
	// Address is the broker host. Defaults to "localhost".
	Address string

	// Port is the broker TCP port. Defaults to 1883.
	Port int

	// Timeout bounds the initial connection handshake only. Defaults
	// to 60 seconds.
	Timeout time.Duration

	// OnConnected, if set, replaces the session's OnConnect hook for
	// this connection. Each Connect call overwrites the previously
	// registered pair; both are cleared when the session disconnects.
	OnConnected ConnectionHandler

	// OnDisconnected, if set, replaces the session's OnDisconnect hook
	// for this connection.
	OnDisconnected ConnectionHandler
}

// Hooks are the session's default event handlers, fixed at construction.
// Nil fields are no-ops. All hooks run on the engine's notification
// goroutine.
type Hooks struct {
	// OnConnect fires on connection when no OnConnected callback was
	// registered with Connect.
	OnConnect ConnectionHandler

	// OnDisconnect fires on disconnection when no OnDisconnected
	// callback was registered with Connect.
	OnDisconnect ConnectionHandler

	// OnMessage receives every inbound message that has no registered
	// topic handler.
	OnMessage MessageHandler

	// OnPublished fires when an outbound publish completes, with the
	// engine-assigned message id. Completions are not correlated with
	// the Publish calls that caused them.
	OnPublished func(mid uint16)

	// OnSubscribed fires when the broker grants a subscription.
	OnSubscribed func(topic string, granted QoS)

	// OnUnsubscribed fires when the broker acknowledges an unsubscribe.
	OnUnsubscribed func(topic string)
}

// Version reports the component versions of a session as three-component
// tuples.
type Version struct {
	// Engine is the underlying client library version.
	Engine [3]int

	// Wrapper is the version of this library.
	Wrapper [3]int

	// Protocol is the negotiated MQTT revision.
	Protocol [3]int
}

// wrapperVersion is the version of this library.
var wrapperVersion = [3]int{0, 3, 0}
