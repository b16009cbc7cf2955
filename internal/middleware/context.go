package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ClientContextKey is the context key for the client identity
	ClientContextKey ContextKey = "clientContext"
	// RequestIDKey is the context key for request tracing ID
	RequestIDKey ContextKey = "requestID"
)

// ClientContext identifies the caller for logging and rate limiting.
type ClientContext struct {
	Subject  string
	AuthType string // "jwt" or "anonymous"
}

// GetClientContext extracts the client context from a request context
func GetClientContext(ctx context.Context) *ClientContext {
	c, _ := ctx.Value(ClientContextKey).(*ClientContext)
	return c
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// generateRequestID creates a random 16-byte hex request ID
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", os.Getpid())
	}
	return hex.EncodeToString(b)
}

// remoteHost strips the port from a request's remote address.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
