package app

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const generatedSecretBytes = 48

// secretSlot names a secret the process cannot run without.
type secretSlot struct {
	key   string
	value func(*Config) *string
}

var requiredSecrets = []secretSlot{
	{key: "auth.jwt.secret", value: func(c *Config) *string { return &c.Auth.JWT.Secret }},
}

// ApplyRuntimeDefaults fills every empty required secret with random bytes so the
// process can start without a config file. It returns the keys it filled, never
// the values. Tokens signed with a generated secret do not survive a restart.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	for _, slot := range requiredSecrets {
		target := slot.value(cfg)
		if strings.TrimSpace(*target) != "" {
			continue
		}
		secret, err := randomSecret(generatedSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", slot.key, err)
		}
		*target = secret
		generated = append(generated, slot.key)
	}
	return generated, nil
}

func randomSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
