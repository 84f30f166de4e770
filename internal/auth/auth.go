// Package auth provides session tokens for the venue authorize handshake.
//
// The gateway only reads tokens. Acquiring and persisting them belongs to the
// caller; a TokenSource is consulted each time the session (re)authorizes, so
// a rotated token is picked up on the next reconnect.
package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// TokenSource returns the current session token, or false if none is
// available.
type TokenSource interface {
	Token() (string, bool)
}

// StaticToken is a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, bool) {
	s := strings.TrimSpace(string(t))
	return s, s != ""
}

// EnvToken reads the token from an environment variable on every call.
type EnvToken string

// Token implements TokenSource.
func (name EnvToken) Token() (string, bool) {
	s := strings.TrimSpace(os.Getenv(string(name)))
	return s, s != ""
}

// FileToken reads the token from a file on every call. Surrounding
// whitespace is ignored.
type FileToken string

// Token implements TokenSource.
func (path FileToken) Token() (string, bool) {
	s, err := ReadTokenFile(string(path))
	if err != nil {
		return "", false
	}
	return s, true
}

// ReadTokenFile loads a token from path.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return s, nil
}

// Holder is a TokenSource whose token can be replaced at runtime, for
// callers that obtain the token after startup.
type Holder struct {
	mu    sync.RWMutex
	token string
}

// NewHolder creates a Holder with an initial token, which may be empty.
func NewHolder(token string) *Holder {
	return &Holder{token: strings.TrimSpace(token)}
}

// Set replaces the token.
func (h *Holder) Set(token string) {
	h.mu.Lock()
	h.token = strings.TrimSpace(token)
	h.mu.Unlock()
}

// Clear removes the token.
func (h *Holder) Clear() {
	h.Set("")
}

// Token implements TokenSource.
func (h *Holder) Token() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

// First returns a TokenSource that yields the first available token from
// sources, in order.
func First(sources ...TokenSource) TokenSource {
	return chain(sources)
}

type chain []TokenSource

func (c chain) Token() (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if tok, ok := src.Token(); ok {
			return tok, true
		}
	}
	return "", false
}
