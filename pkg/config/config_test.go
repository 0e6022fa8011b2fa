package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"PT5M", 5 * time.Minute},
		{"PT1H30M", 90 * time.Minute},
		{"P1D", 24 * time.Hour},
		{"45s", 45 * time.Second},
		{"0", 0},
		{"", 0},
	}

	for _, test := range tests {
		parsed, err := ParseDuration(test.input)
		require.NoError(t, err, test.input)
		assert.Equal(t, test.expected, parsed.Duration, test.input)
	}

	_, err := ParseDuration("five minutes")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Registry.StalenessTTL.Duration)
	assert.Equal(t, 7, cfg.Aggregator.WindowDays)
}

func TestLoadYAMLAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "busify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9000"
registry:
  staleness_ttl: PT2M
tickets:
  lifetime: PT12H
aggregator:
  timezone: Asia/Kolkata
`), 0o600))

	t.Setenv("BUSIFY_TICKET_LIFETIME", "PT1H")
	t.Setenv("BUSIFY_REDIS_ADDRESS", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
	assert.Equal(t, 2*time.Minute, cfg.Registry.StalenessTTL.Duration)
	assert.Equal(t, time.Hour, cfg.Tickets.Lifetime.Duration)
	assert.Equal(t, "Asia/Kolkata", cfg.Aggregator.Timezone)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestValidateRejectsUnknownModes(t *testing.T) {
	cfg := Default()
	cfg.Store.Mode = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Identity.Provider = IdentityProviderJWKS
	assert.Error(t, cfg.Validate())

	cfg.Identity.JWKSIssuer = "https://issuer.example.com/"
	cfg.Identity.JWKSAudience = "busify"
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Aggregator.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}
