package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// AsanaTokenName is the well-known secret holding the Asana access token.
const AsanaTokenName = "asana-access-token"

// ErrNotFound is returned by a Store when no secret exists under a name.
var ErrNotFound = errors.New("secret not found")

// Store retrieves named secret payloads.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// Credential is the JSON payload stored under a secret name.
type Credential struct {
	Token string `json:"token"`
}

// CredentialError reports a failure to resolve a credential into a usable token.
type CredentialError struct {
	Name   string
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("credential %q: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// ResolveToken fetches a secret and extracts the access token from it.
// The payload may be a JSON object with a "token" field or a bare token
// string. All failures come back as *CredentialError.
func ResolveToken(ctx context.Context, store Store, name string) (string, error) {
	raw, err := store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &CredentialError{Name: name, Reason: "not configured"}
		}
		return "", &CredentialError{Name: name, Reason: "store unavailable", Err: err}
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var cred Credential
		if err := json.Unmarshal([]byte(raw), &cred); err != nil {
			return "", &CredentialError{Name: name, Reason: "malformed payload", Err: err}
		}
		if cred.Token == "" {
			return "", &CredentialError{Name: name, Reason: "payload has no token field"}
		}
		return cred.Token, nil
	}

	if raw == "" {
		return "", &CredentialError{Name: name, Reason: "empty payload"}
	}
	return raw, nil
}

// NewStoreFromEnv selects a backend via SECRET_STORE.
// "postgres" opens the encrypted database store; anything else (including
// unset) uses environment variables directly.
func NewStoreFromEnv() (Store, error) {
	switch os.Getenv("SECRET_STORE") {
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, errors.New("SECRET_STORE=postgres requires DATABASE_URL")
		}
		return OpenPostgresStore(dsn)
	default:
		return EnvStore{}, nil
	}
}
