package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/internal/temporal"
)

func TestFromSourceDefaults(t *testing.T) {
	cfg, err := FromSource(Map{})
	require.NoError(t, err)

	assert.Equal(t, "taskpilot", cfg.AppName)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, IdempotencyPostgres, cfg.Idempotency.Backend)
	assert.False(t, cfg.Idempotency.EnforceHash)
	assert.Equal(t, 30*time.Second, cfg.Idempotency.ClaimTTL)
	assert.Equal(t, "postgres://taskpilot:@localhost:5432/taskpilot?sslmode=disable", cfg.Database.URL)
	assert.True(t, cfg.UsesPostgres())
}

func TestFromSourceOverrides(t *testing.T) {
	cfg, err := FromSource(Map{
		"STORE_DRIVER":             "Memory",
		"IDEMPOTENCY_BACKEND":      "redis",
		"IDEMPOTENCY_ENFORCE_HASH": "true",
		"IDEMPOTENCY_CLAIM_TTL":    "45",
		"SYNC_INTERVAL_SECONDS":    "1m",
		"DATABASE_URL":             "postgres://x",
		"SERVER_PORT":              "9000",
		"REDIS_DB":                 "not-a-number",
		"APP_ENV":                  "production",
	})
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, IdempotencyRedis, cfg.Idempotency.Backend)
	assert.True(t, cfg.Idempotency.EnforceHash)
	assert.Equal(t, 45*time.Second, cfg.Idempotency.ClaimTTL)
	assert.Equal(t, time.Minute, cfg.Buffer.SyncInterval)
	assert.Equal(t, "postgres://x", cfg.Database.URL)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.False(t, cfg.UsesPostgres())
}

func TestFromSourceRejectsBadDrivers(t *testing.T) {
	_, err := FromSource(Map{"STORE_DRIVER": "sheets"})
	assert.Error(t, err)

	_, err = FromSource(Map{"IDEMPOTENCY_BACKEND": "etcd"})
	assert.Error(t, err)

	_, err = FromSource(Map{"STORE_DRIVER": "memory"})
	assert.Error(t, err, "postgres idempotency needs the postgres store")
}

func TestResolveSchedulingDefaults(t *testing.T) {
	s := ResolveScheduling(Map{})
	assert.Equal(t, time.UTC, s.Location)
	assert.Equal(t, 120*time.Minute, s.Cooldown)
	assert.Equal(t, temporal.DefaultBoundaries(), s.Boundaries)
}

func TestResolveScheduling(t *testing.T) {
	s := ResolveScheduling(Map{
		"TIMEZONE":              "Not/AZone",
		"SUGGEST_COOLDOWN_MINS": "30",
		"MORNING_START":         "6:30",
		"MORNING_END":           "0.5",
		"AFTERNOON_END":         "25:00",
		"EVENING_END":           "garbage",
	})
	assert.Equal(t, time.UTC, s.Location, "unknown zones fall back to UTC")
	assert.Equal(t, 30*time.Minute, s.Cooldown)
	assert.Equal(t, temporal.Boundaries{
		MorningStart: "06:30",
		MorningEnd:   "12:00",
		AfternoonEnd: "23:00",
		EveningEnd:   temporal.DefaultEveningEnd,
	}, s.Boundaries)
}

func TestSchedulingProviderRereadsSource(t *testing.T) {
	src := Map{"SUGGEST_COOLDOWN_MINS": "10"}
	p := SchedulingProvider{Source: src}
	assert.Equal(t, 10*time.Minute, p.Scheduling().Cooldown)

	src["SUGGEST_COOLDOWN_MINS"] = "20"
	assert.Equal(t, 20*time.Minute, p.Scheduling().Cooldown)
}
