// Package session implements a client-side MQTT session manager: the
// connection state machine, the topic-to-handler registry, and the
// dispatch of inbound messages, layered over a narrow protocol engine.
//
// # Basic Usage
//
// Create a session, connect, and subscribe from the connection callback:
//
//	s, err := session.New(session.Settings{ClientID: "sensor-42"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	input := session.Topic{Name: "sensors/42/cmd"}
//	err = s.Connect(session.ConnectOptions{
//	    Address: "broker.example.com",
//	    OnConnected: func(code session.ReasonCode) {
//	        s.Subscribe(&input, session.QoS1, func(msg session.Message) {
//	            fmt.Printf("%s: %s\n", msg.Topic, msg.Payload)
//	        })
//	    },
//	})
//
// Connect returns before the handshake completes; all callbacks run on
// the engine's notification goroutine and must not block indefinitely.
//
// # Dispatch
//
// Inbound messages are routed by exact topic string. Subscribing with a
// wildcard filter works at the broker, but locally the concrete topic
// names of delivered messages will not equal the filter, so those
// messages reach the Hooks.OnMessage default handler instead of the
// filter's handler.
//
// # Reconnection
//
// The session never reconnects on its own. A caller wanting reconnection
// re-invokes Connect from its OnDisconnected callback.
package session
