package app

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "   "

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"auth.jwt.secret"}, generated)

	raw, err := base64.RawURLEncoding.DecodeString(cfg.Auth.JWT.Secret)
	require.NoError(t, err)
	require.Len(t, raw, generatedSecretBytes)

	first := cfg.Auth.JWT.Secret
	other := &Config{}
	_, err = ApplyRuntimeDefaults(other)
	require.NoError(t, err)
	require.NotEqual(t, first, other.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsKeepsConfiguredSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "configured"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, "configured", cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.EqualError(t, err, "config is nil")
}

func TestRandomSecret(t *testing.T) {
	secret, err := randomSecret(3)
	require.NoError(t, err)
	require.Len(t, secret, 4)

	_, err = randomSecret(0)
	require.Error(t, err)
}
