package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  host: localhost\n  port: 5432\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 100.0, cfg.Pricing.BasePrice)
	assert.Equal(t, "sandbox", cfg.Payments.Provider)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5, cfg.Worker.ReconcileSweepMinutes)
	assert.Equal(t, 30, cfg.Payments.GatewayTimeoutSecs)
	assert.Equal(t, 150, cfg.Payments.LockTTLSeconds)
	assert.Equal(t, "host=localhost port=5432 user= password= dbname= sslmode=", cfg.Database.DSN())
}

func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
env: prod
storage:
  driver: mongo
mongo:
  uri: mongodb://localhost:27017
  database: stays
pricing:
  base_price: 120.5
payments:
  provider: stripe
  stripe_secret_key: sk_test_123
  currency: eur
kafka:
  brokers: ["localhost:9092"]
  booking_events_topic: booking-events
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "mongo", cfg.Storage.Driver)
	assert.Equal(t, "stays", cfg.Mongo.Database)
	assert.Equal(t, 120.5, cfg.Pricing.BasePrice)
	assert.Equal(t, "eur", cfg.Payments.Currency)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_LockTTLFollowsGatewayTimeout(t *testing.T) {
	path := writeConfig(t, "payments:\n  gateway_timeout_seconds: 10\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Payments.LockTTLSeconds)

	path = writeConfig(t, "payments:\n  gateway_timeout_seconds: 10\n  lock_ttl_seconds: 41\n")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 41, cfg.Payments.LockTTLSeconds)
}

func TestLoadConfig_EnvOverridesSecret(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_env")
	path := writeConfig(t, "payments:\n  provider: stripe\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_env", cfg.Payments.StripeSecretKey)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")

	testCases := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "storage:\n  driver: sqlite\n"},
		{name: "unknown provider", body: "payments:\n  provider: paypal\n"},
		{name: "stripe without key", body: "payments:\n  provider: stripe\n"},
		{name: "malformed yaml", body: "storage: [\n"},
		{name: "lock shorter than gateway calls", body: "payments:\n  lock_ttl_seconds: 60\n  gateway_timeout_seconds: 30\n"},
		{name: "lock equal to gateway calls", body: "payments:\n  lock_ttl_seconds: 40\n  gateway_timeout_seconds: 10\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
