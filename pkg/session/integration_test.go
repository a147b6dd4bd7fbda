package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotcraft/mqttsession/pkg/brokertest"
	"github.com/iotcraft/mqttsession/pkg/session"
)

const waitTimeout = 5 * time.Second

// startBroker runs an embedded broker on a free port and registers
// cleanup.
func startBroker(t *testing.T) *brokertest.Broker {
	t.Helper()

	broker, err := brokertest.New(0)
	require.NoError(t, err)
	ctx, cancelStart := context.WithCancel(context.Background())
	t.Cleanup(cancelStart)
	require.NoError(t, broker.Start(ctx))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = broker.Stop(ctx, waitTimeout)
	})
	return broker
}

// connect establishes a session to broker and waits for the broker's
// acknowledgment.
func connect(t *testing.T, s *session.Session, broker *brokertest.Broker, opts session.ConnectOptions) {
	t.Helper()

	connected := make(chan session.ReasonCode, 1)
	userCB := opts.OnConnected
	opts.Address = "127.0.0.1"
	opts.Port = broker.Port()
	opts.OnConnected = func(code session.ReasonCode) {
		if userCB != nil {
			userCB(code)
		}
		connected <- code
	}

	require.NoError(t, s.Connect(opts))
	select {
	case code := <-connected:
		require.Equal(t, session.ReasonCode(0), code)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for connection")
	}
}

func TestIntegrationRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := startBroker(t)

	subscribed := make(chan string, 1)
	received := make(chan session.Message, 1)
	s, err := session.New(session.Settings{ClientID: "it-roundtrip"},
		session.WithHooks(session.Hooks{
			OnSubscribed: func(topic string, _ session.QoS) { subscribed <- topic },
		}))
	require.NoError(t, err)
	defer s.Close()

	connect(t, s, broker, session.ConnectOptions{})

	topic := session.Topic{Name: "it/roundtrip"}
	require.NoError(t, s.Subscribe(&topic, session.QoS1, func(msg session.Message) {
		received <- msg.Clone()
	}))
	select {
	case name := <-subscribed:
		assert.Equal(t, "it/roundtrip", name)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for subscription grant")
	}

	// Publish to our own subscription; the broker routes it back.
	require.NoError(t, s.PublishString(&topic, "hello", session.QoS1))

	select {
	case msg := <-received:
		assert.Equal(t, "it/roundtrip", msg.Topic)
		assert.Equal(t, "hello", string(msg.Payload))
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for message delivery")
	}
}

func TestIntegrationBrokerPublishReachesHandler(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := startBroker(t)

	subscribed := make(chan struct{}, 1)
	received := make(chan []byte, 1)
	s, err := session.New(session.Settings{ClientID: "it-inbound"},
		session.WithHooks(session.Hooks{
			OnSubscribed: func(string, session.QoS) { subscribed <- struct{}{} },
		}))
	require.NoError(t, err)
	defer s.Close()

	connect(t, s, broker, session.ConnectOptions{})

	topic := session.Topic{Name: "it/inbound"}
	require.NoError(t, s.Subscribe(&topic, session.QoS0, func(msg session.Message) {
		received <- append([]byte(nil), msg.Payload...)
	}))
	select {
	case <-subscribed:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for subscription grant")
	}

	require.NoError(t, broker.Publish("it/inbound", []byte("from broker"), 0, false))

	select {
	case payload := <-received:
		assert.Equal(t, "from broker", string(payload))
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for message delivery")
	}
}

func TestIntegrationPublishedNotification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := startBroker(t)

	published := make(chan uint16, 1)
	s, err := session.New(session.Settings{ClientID: "it-puback"},
		session.WithHooks(session.Hooks{
			OnPublished: func(mid uint16) { published <- mid },
		}))
	require.NoError(t, err)
	defer s.Close()

	connect(t, s, broker, session.ConnectOptions{})

	topic := session.Topic{Name: "it/puback"}
	require.NoError(t, s.PublishString(&topic, "payload", session.QoS1))

	select {
	case mid := <-published:
		// QoS1 publishes carry a nonzero packet id, echoed back into
		// both the notification and topic.ID.
		assert.NotZero(t, mid)
		assert.Equal(t, int(mid), topic.ID)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for publish completion")
	}
}

func TestIntegrationUnsubscribeStopsDelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := startBroker(t)

	subscribed := make(chan struct{}, 1)
	unsubscribed := make(chan struct{}, 1)
	handled := make(chan struct{}, 4)
	s, err := session.New(session.Settings{ClientID: "it-unsub"},
		session.WithHooks(session.Hooks{
			OnSubscribed:   func(string, session.QoS) { subscribed <- struct{}{} },
			OnUnsubscribed: func(string) { unsubscribed <- struct{}{} },
		}))
	require.NoError(t, err)
	defer s.Close()

	connect(t, s, broker, session.ConnectOptions{})

	topic := session.Topic{Name: "it/unsub"}
	require.NoError(t, s.Subscribe(&topic, session.QoS0, func(session.Message) {
		handled <- struct{}{}
	}))
	select {
	case <-subscribed:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for subscription grant")
	}

	require.NoError(t, s.Unsubscribe(&topic))
	select {
	case <-unsubscribed:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for unsubscribe acknowledgment")
	}

	require.NoError(t, broker.Publish("it/unsub", []byte("late"), 0, false))
	select {
	case <-handled:
		t.Fatal("handler ran after unsubscribe")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestIntegrationBrokerShutdownFiresDisconnected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := startBroker(t)

	disconnected := make(chan session.ReasonCode, 1)
	s, err := session.New(session.Settings{ClientID: "it-drop"})
	require.NoError(t, err)
	defer s.Close()

	connect(t, s, broker, session.ConnectOptions{
		OnDisconnected: func(code session.ReasonCode) { disconnected <- code },
	})

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, broker.Stop(ctx, waitTimeout))

	select {
	case <-disconnected:
		assert.Equal(t, session.StatusDisconnected, s.Status())
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for disconnection notification")
	}
}

func TestIntegrationConnectRefused(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Bind and release a port so nothing is listening on it.
	broker, err := brokertest.New(0)
	require.NoError(t, err)
	startCtx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()
	require.NoError(t, broker.Start(startCtx))
	port := broker.Port()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, broker.Stop(ctx, waitTimeout))

	disconnected := make(chan session.ReasonCode, 1)
	s, err := session.New(session.Settings{ClientID: "it-refused"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Connect(session.ConnectOptions{
		Address: "127.0.0.1",
		Port:    port,
		Timeout: 2 * time.Second,
		OnConnected: func(session.ReasonCode) {
			t.Error("unexpected connection success")
		},
		OnDisconnected: func(code session.ReasonCode) { disconnected <- code },
	}))

	select {
	case code := <-disconnected:
		assert.NotEqual(t, session.ReasonCode(0), code,
			fmt.Sprintf("refused connect must not report success, got %v", code))
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for handshake failure")
	}
}

func TestIntegrationDisconnectThenReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := startBroker(t)

	disconnected := make(chan session.ReasonCode, 1)
	s, err := session.New(session.Settings{ClientID: "it-reconnect"})
	require.NoError(t, err)
	defer s.Close()

	connect(t, s, broker, session.ConnectOptions{
		OnDisconnected: func(code session.ReasonCode) { disconnected <- code },
	})

	require.NoError(t, s.Disconnect())
	select {
	case code := <-disconnected:
		assert.Equal(t, session.ReasonCode(0), code)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for clean disconnect")
	}

	// The same session reconnects with a fresh callback pair.
	connect(t, s, broker, session.ConnectOptions{})
	assert.Equal(t, session.StatusConnected, s.Status())
}
