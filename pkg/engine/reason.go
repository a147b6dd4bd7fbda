package engine

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// ReasonCode is a numeric engine result code attached to notifications
// and errors. Codes 0-5 mirror the MQTT 3.1.1 CONNACK return codes;
// higher values are local to the engine.
type ReasonCode int

// Reason codes.
const (
	CodeSuccess             ReasonCode = 0
	CodeUnacceptableVersion ReasonCode = 1
	CodeIdentifierRejected  ReasonCode = 2
	CodeServerUnavailable   ReasonCode = 3
	CodeBadCredentials      ReasonCode = 4
	CodeNotAuthorized       ReasonCode = 5

	// Local codes, outside the CONNACK range.
	CodeNetworkError      ReasonCode = 128
	CodeProtocolViolation ReasonCode = 129
	CodeConnectionLost    ReasonCode = 130
	CodeUnknown           ReasonCode = 131
)

// String returns a human-readable description of the code.
func (c ReasonCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeUnacceptableVersion:
		return "unacceptable protocol version"
	case CodeIdentifierRejected:
		return "identifier rejected"
	case CodeServerUnavailable:
		return "server unavailable"
	case CodeBadCredentials:
		return "bad user name or password"
	case CodeNotAuthorized:
		return "not authorized"
	case CodeNetworkError:
		return "network error"
	case CodeProtocolViolation:
		return "protocol violation"
	case CodeConnectionLost:
		return "connection lost"
	default:
		return fmt.Sprintf("unknown reason code %d", int(c))
	}
}

// CodeOf translates an error reported by the underlying client library
// into a ReasonCode. A nil error is CodeSuccess.
func CodeOf(err error) ReasonCode {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, packets.ErrorRefusedBadProtocolVersion):
		return CodeUnacceptableVersion
	case errors.Is(err, packets.ErrorRefusedIDRejected):
		return CodeIdentifierRejected
	case errors.Is(err, packets.ErrorRefusedServerUnavailable):
		return CodeServerUnavailable
	case errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword):
		return CodeBadCredentials
	case errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return CodeNotAuthorized
	case errors.Is(err, packets.ErrorNetworkError):
		return CodeNetworkError
	case errors.Is(err, packets.ErrorProtocolViolation):
		return CodeProtocolViolation
	default:
		return CodeUnknown
	}
}
