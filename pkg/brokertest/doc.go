// Package brokertest runs an embedded MQTT broker inside the test
// process, so integration tests and examples work against a real broker
// without external infrastructure.
package brokertest
