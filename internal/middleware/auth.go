package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskbridge/server/internal/observability"
)

// Authorizer validates bearer tokens when a shared HMAC secret is configured.
// Without AUTH_HMAC_SECRET every request passes through with an anonymous
// client identity derived from the remote address.
type Authorizer struct {
	secret []byte
}

// NewAuthorizerFromEnv builds an authorizer from AUTH_HMAC_SECRET.
func NewAuthorizerFromEnv() *Authorizer {
	secret := os.Getenv("AUTH_HMAC_SECRET")
	if secret == "" {
		log.Println("AUTH_HMAC_SECRET not set, bearer auth disabled")
		return &Authorizer{}
	}
	return &Authorizer{secret: []byte(secret)}
}

// Enabled reports whether bearer auth is enforced.
func (a *Authorizer) Enabled() bool {
	return len(a.secret) > 0
}

// Authorize is HTTP middleware that attaches a request ID and client
// identity to the context, rejecting requests with bad credentials.
func (a *Authorizer) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientCtx, err := a.validateRequest(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		// Generate or propagate request ID for tracing
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := context.WithValue(r.Context(), ClientContextKey, clientCtx)
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateRequest verifies the bearer token (when auth is enabled) and
// returns the client identity.
func (a *Authorizer) validateRequest(r *http.Request) (*ClientContext, error) {
	if !a.Enabled() {
		return &ClientContext{Subject: remoteHost(r), AuthType: "anonymous"}, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		observability.LogSecurityEvent("", "", "missing_bearer_token", map[string]any{
			"remote_addr": r.RemoteAddr,
		})
		return nil, &AuthError{
			Code:    "MISSING_TOKEN",
			Message: "Missing bearer token",
			Status:  http.StatusUnauthorized,
		}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithLeeway(5*time.Second))
	if err != nil {
		observability.LogSecurityEvent("", "", "invalid_bearer_token", map[string]any{
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return nil, &AuthError{
			Code:    "INVALID_TOKEN",
			Message: "Invalid bearer token",
			Status:  http.StatusUnauthorized,
		}
	}

	subject := claims.Subject
	if subject == "" {
		subject = remoteHost(r)
	}
	return &ClientContext{Subject: subject, AuthType: "jwt"}, nil
}

// AuthError represents an authorization error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// writeAuthError writes an authorization error response
func writeAuthError(w http.ResponseWriter, err error) {
	authErr, ok := err.(*AuthError)
	if !ok {
		authErr = &AuthError{
			Code:    "AUTHORIZATION_ERROR",
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.Status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   authErr.Code,
		"message": authErr.Message,
	})
}
