package store

import (
	"fmt"
	"os"
)

// Credentials is an Alpaca key pair.
type Credentials struct {
	Key    string
	Secret string
	// Shared is true when the model-specific pair was missing and the
	// default ALPACA_KEY/ALPACA_SECRET pair was used instead.
	Shared bool
}

// CredentialsFor resolves <PREFIX>_ALPACA_KEY/_SECRET for a model, falling
// back to ALPACA_KEY/ALPACA_SECRET.
func CredentialsFor(m Model) (Credentials, error) {
	return credentialsFrom(m, os.Getenv)
}

func credentialsFrom(m Model, getenv func(string) string) (Credentials, error) {
	key := getenv(m.EnvPrefix + "_ALPACA_KEY")
	secret := getenv(m.EnvPrefix + "_ALPACA_SECRET")
	if key != "" && secret != "" {
		return Credentials{Key: key, Secret: secret}, nil
	}

	key, secret = getenv("ALPACA_KEY"), getenv("ALPACA_SECRET")
	if key == "" || secret == "" {
		return Credentials{}, fmt.Errorf("no Alpaca API keys found for %s (prefix %s)", m.Name, m.EnvPrefix)
	}
	return Credentials{Key: key, Secret: secret, Shared: true}, nil
}
