package engine

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iotcraft/mqttsession/pkg/logging"
)

// pahoVersion is the version of the paho client library this binding is
// written against.
var pahoVersion = [3]int{1, 5, 1}

const (
	defaultAddress = "localhost"
	defaultPort    = 1883
	defaultTimeout = 60 * time.Second

	// keepAlive is the ping interval negotiated with the broker.
	keepAlive = 30 * time.Second

	// disconnectQuiesce is how long a clean disconnect waits for
	// in-flight work to drain.
	disconnectQuiesce = 250 * time.Millisecond
)

var _ Engine = (*pahoEngine)(nil)

// pahoEngine drives the eclipse paho MQTT client. The paho client owns
// the network goroutines; every notification is forwarded from those
// goroutines without marshaling.
type pahoEngine struct {
	mu     sync.Mutex
	opts   *pahomqtt.ClientOptions
	client pahomqtt.Client
	cb     Callbacks
	log    *slog.Logger

	// subID assigns local subscription ids; paho does not expose the
	// SUBACK packet id.
	subID atomic.Int64
}

// NewPaho creates the production Engine backed by the paho MQTT client.
// It satisfies the Factory signature. The paho client implements MQTT
// 3.1 and 3.1.1; requesting ProtocolV5 fails with ErrUnsupportedProtocol.
func NewPaho(cfg Config, cb Callbacks) (Engine, error) {
	if cfg.Protocol == ProtocolV5 {
		return nil, fmt.Errorf("paho engine: %w", ErrUnsupportedProtocol)
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	e := &pahoEngine{cb: cb, log: log}

	opts := pahomqtt.NewClientOptions()
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(cfg.CleanSession)
	if cfg.Protocol == ProtocolV31 {
		opts.SetProtocolVersion(3)
	} else {
		opts.SetProtocolVersion(4)
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		e.log.Debug("engine connected")
		e.notifyConnected(CodeSuccess)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		e.log.Debug("engine connection lost", "error", err)
		e.notifyDisconnected(disconnectCode(err))
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, m pahomqtt.Message) {
		if e.cb.OnMessage != nil {
			e.cb.OnMessage(Message{
				Topic:     m.Topic(),
				Payload:   m.Payload(),
				QoS:       QoS(m.Qos()),
				Retain:    m.Retained(),
				ID:        m.MessageID(),
				Duplicate: m.Duplicate(),
			})
		}
	})
	e.opts = opts

	return e, nil
}

// Connect builds a fresh paho client for the target broker and starts
// the handshake. The result is reported through the callbacks: a
// successful handshake fires OnConnected, a failed one OnDisconnected.
func (e *pahoEngine) Connect(cfg ConnectConfig) error {
	addr := cfg.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	broker := "tcp://" + net.JoinHostPort(addr, strconv.Itoa(port))

	e.mu.Lock()
	e.opts.Servers = e.opts.Servers[:0]
	e.opts.AddBroker(broker)
	e.opts.SetConnectTimeout(timeout)
	client := pahomqtt.NewClient(e.opts)
	e.client = client
	e.mu.Unlock()

	e.log.Debug("engine connecting", "broker", broker, "timeout", timeout)

	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			e.log.Debug("engine handshake failed", "error", err)
			e.notifyDisconnected(disconnectCode(err))
		}
	}()
	return nil
}

func (e *pahoEngine) Disconnect() error {
	client := e.currentClient()
	if client == nil {
		return ErrNotConnected
	}
	go func() {
		client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
		e.notifyDisconnected(CodeSuccess)
	}()
	return nil
}

func (e *pahoEngine) Publish(topic string, payload []byte, qos QoS, retain bool) (uint16, error) {
	client := e.currentClient()
	if client == nil {
		return 0, ErrNotConnected
	}

	token := client.Publish(topic, byte(qos), retain, payload)
	var mid uint16
	if pt, ok := token.(*pahomqtt.PublishToken); ok {
		mid = pt.MessageID()
	}
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			e.log.Debug("publish failed", "topic", topic, "error", err)
			return
		}
		if e.cb.OnPublished != nil {
			e.cb.OnPublished(mid)
		}
	}()
	return mid, nil
}

func (e *pahoEngine) Subscribe(topic string, qos QoS) (int, error) {
	client := e.currentClient()
	if client == nil {
		return 0, ErrNotConnected
	}

	// Nil handler: paho routes matching messages to the default publish
	// handler, which is the engine's single message notification path.
	token := client.Subscribe(topic, byte(qos), nil)
	id := int(e.subID.Add(1))
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			e.log.Debug("subscribe failed", "topic", topic, "error", err)
			return
		}
		granted := qos
		if st, ok := token.(*pahomqtt.SubscribeToken); ok {
			if g, ok := st.Result()[topic]; ok {
				if g >= 0x80 {
					e.log.Debug("subscription rejected by broker", "topic", topic, "code", g)
					return
				}
				granted = QoS(g)
			}
		}
		if e.cb.OnSubscribed != nil {
			e.cb.OnSubscribed(topic, granted)
		}
	}()
	return id, nil
}

func (e *pahoEngine) Unsubscribe(topic string) error {
	client := e.currentClient()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Unsubscribe(topic)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			e.log.Debug("unsubscribe failed", "topic", topic, "error", err)
			return
		}
		if e.cb.OnUnsubscribed != nil {
			e.cb.OnUnsubscribed(topic)
		}
	}()
	return nil
}

func (e *pahoEngine) Version() [3]int {
	return pahoVersion
}

func (e *pahoEngine) Close() {
	e.mu.Lock()
	client := e.client
	e.client = nil
	e.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
	}
}

func (e *pahoEngine) currentClient() pahomqtt.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

func (e *pahoEngine) notifyConnected(code ReasonCode) {
	if e.cb.OnConnected != nil {
		e.cb.OnConnected(code)
	}
}

func (e *pahoEngine) notifyDisconnected(code ReasonCode) {
	if e.cb.OnDisconnected != nil {
		e.cb.OnDisconnected(code)
	}
}

// disconnectCode maps a connection-ending error to a reason code,
// defaulting to CodeConnectionLost for errors with no CONNACK mapping.
func disconnectCode(err error) ReasonCode {
	if code := CodeOf(err); code != CodeUnknown {
		return code
	}
	return CodeConnectionLost
}
