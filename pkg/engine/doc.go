// Package engine defines the narrow protocol-engine contract the session
// layer drives, and provides the production binding backed by the eclipse
// paho MQTT client.
//
// An Engine owns the wire protocol: framing, transport, packet-level
// retries, and keep-alive pings. The session layer above it owns
// subscription state, dispatch, and the connection state machine. The
// boundary is five operations (connect, disconnect, publish, subscribe,
// unsubscribe) plus six notifications registered through Callbacks.
//
// The package also holds the process-wide engine lifecycle counter.
// Sessions call Acquire before creating an engine handle and Release when
// destroyed; global engine state is initialized on the first Acquire and
// torn down by the last Release.
package engine
