package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStaleConnection    = errors.New("connection stale (no frames)")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrAlreadyStarted     = errors.New("already started")
	ErrNotStarted         = errors.New("not started")
	ErrSessionActive      = errors.New("session still active")
	ErrNotReady           = errors.New("session not ready")
	ErrAuthTimeout        = errors.New("authorize response timeout")
	ErrMissingToken       = errors.New("no session token available")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// ConnectionError is a transport-level failure. It triggers the reconnect
// policy and is never returned to request callers.
type ConnectionError struct {
	Op  string // "dial", "read", "write", "authorize"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthenticationError means the venue rejected the session token, or no token
// was available. It is fatal for the session.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is the supervisor's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL including app_id (e.g., wss://ws.derivws.com/websockets/v3?app_id=1089)
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	ReadTimeout      time.Duration // Max time without any inbound frame before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// SupervisorConfig configures the Connection Supervisor.
type SupervisorConfig struct {
	Client               ClientConfig
	AuthTimeout          time.Duration // Max wait for the authorize response
	PingInterval         time.Duration // Keepalive interval while Ready
	ReconnectBaseDelay   time.Duration // Delay before the first reconnect
	MaxReconnectAttempts int           // Failures tolerated before ErrReconnectExhausted
}

// DefaultSupervisorConfig returns sensible defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Client:               DefaultClientConfig(),
		AuthTimeout:          10 * time.Second,
		PingInterval:         30 * time.Second,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 5,
	}
}

// MaxBackoff caps the delay returned by Backoff.
const MaxBackoff = 10 * time.Minute

// Backoff returns the delay before reconnect attempt n (1-based):
// base * 2^(n-1), capped at MaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base >= MaxBackoff {
		return MaxBackoff
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= MaxBackoff/2 {
			return MaxBackoff
		}
		delay *= 2
	}
	return delay
}
