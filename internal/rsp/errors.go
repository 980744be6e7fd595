package rsp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means the server answered with an empty packet.
	ErrUnsupported = errors.New("request not supported by server")

	// ErrUnavailable means the server reported a register value as "xx".
	ErrUnavailable = errors.New("register value unavailable")

	// ErrTimeout means the server did not answer in time.
	ErrTimeout = errors.New("timed out waiting for server")
)

// ErrorReply is an "Enn" reply to a request.
type ErrorReply struct {
	// Packet is the request command (e.g., "m", "qXfer")
	Packet string
	// Code is the server specific error number
	Code byte
}

func (e *ErrorReply) Error() string {
	return fmt.Sprintf("server rejected %s request with error E%02x", e.Packet, e.Code)
}

// ProtocolError represents a malformed or unexpected exchange.
type ProtocolError struct {
	// Op is the step that failed (send, receive, handshake, ...)
	Op string
	// Underlying error
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gdb remote protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
