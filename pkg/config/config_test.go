package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"CONTACT_ALLOWANCE", "CONTACT_QUOTA_BACKEND", "SERVER_PORT",
		"PROVIDER_API_URL", "BOOKING_SESSION_TTL", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Contact.Allowance)
	assert.Equal(t, "redis", cfg.Contact.QuotaBackend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "", cfg.Booking.ProviderAPIURL)
	assert.Equal(t, 86400, cfg.Booking.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoad_ContactConfig(t *testing.T) {
	t.Setenv("CONTACT_ALLOWANCE", "3")
	t.Setenv("CONTACT_QUOTA_BACKEND", "Postgres")
	t.Setenv("CONTACT_RATE_LIMIT_PER_MINUTE", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Contact.Allowance)
	assert.Equal(t, "postgres", cfg.Contact.QuotaBackend)
	assert.Equal(t, 10, cfg.Contact.RateLimitPerMinute)
	assert.Equal(t, 30*time.Minute, cfg.Contact.FlowTTL)
}

func TestLoad_BookingConfig(t *testing.T) {
	t.Setenv("PROVIDER_API_URL", "http://directory.internal")
	t.Setenv("PROVIDER_API_TIMEOUT", "3s")
	t.Setenv("PROVIDER_BATCH_WAIT", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("AVAILABILITY_WARM_PROVIDERS", "prov-1,prov-2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://directory.internal", cfg.Booking.ProviderAPIURL)
	assert.Equal(t, 3*time.Second, cfg.Booking.ProviderAPITimeout)
	assert.Equal(t, 5*time.Millisecond, cfg.Booking.BatchWait)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"prov-1", "prov-2"}, cfg.Booking.WarmProviderIDs)
	assert.Equal(t, 5*time.Minute, cfg.Booking.WarmInterval)
}

func TestLoad_InvalidSettings(t *testing.T) {
	t.Run("unknown quota backend", func(t *testing.T) {
		t.Setenv("CONTACT_QUOTA_BACKEND", "sqlite")
		_, err := Load()
		assert.ErrorContains(t, err, "CONTACT_QUOTA_BACKEND")
	})

	t.Run("non-positive allowance", func(t *testing.T) {
		t.Setenv("CONTACT_ALLOWANCE", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "CONTACT_ALLOWANCE")
	})
}

func TestConfig_Addresses(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", db.DatabaseDSN())

	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.RedisAddr())

	s := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", s.Addr())
}
