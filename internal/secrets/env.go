package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvStore reads secrets from environment variables. Secret names map to
// env keys by uppercasing and replacing dashes with underscores, so
// "asana-access-token" is read from ASANA_ACCESS_TOKEN.
type EnvStore struct{}

func (EnvStore) Get(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	value := os.Getenv(key)
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}
