package pipe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthRejected marks a connection failure caused by the endpoint
// rejecting the token during the WebSocket handshake (HTTP 401/403).
// Check for it with errors.Is.
var ErrAuthRejected = errors.New("token rejected by endpoint")

// SpawnError means the child process could not be launched. It is fatal
// for the current cycle only; the pipe backs off and retries.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %q: %s", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ConnectError means the WebSocket connection could not be established.
// Its cause chain includes ErrAuthRejected when the endpoint refused the
// token.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %s", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// StreamError means a relay hop hit an I/O failure. It ends that hop,
// which tears down the whole cycle.
type StreamError struct {
	Hop string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("relay %s: %s", e.Hop, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ConfigError means startup configuration is missing or invalid. Unlike
// every other error in this package it is fatal: the entrypoint exits
// non-zero without starting the pipe.
type ConfigError struct {
	Reason      string
	Remediation []string
}

func (e *ConfigError) Error() string {
	if len(e.Remediation) == 0 {
		return e.Reason
	}
	return e.Reason + "\n" + strings.Join(e.Remediation, "\n")
}
