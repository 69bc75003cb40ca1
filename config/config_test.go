package config

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("GEMINI_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 50000, cfg.Extraction.MaxChars)
	assert.Equal(t, time.UTC.String(), cfg.Progression.DayZone.String())
	assert.True(t, cfg.UseMemoryStore())
	assert.Empty(t, cfg.Redis.RedisURL())
	assert.True(t, cfg.Features.IsEnabled(FeatureLLM, nil))
}

func TestLoad_Overrides(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("PROGRESSION_DAY_ZONE", "Asia/Almaty")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "feyn")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("FEATURE_WEEKLY_DIGEST", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "Asia/Almaty", cfg.Progression.DayZone.String())
	assert.Equal(t, "postgres://feyn:pw@db.internal:5432/postgres?sslmode=require", cfg.Database.URL)
	assert.False(t, cfg.UseMemoryStore())
	assert.Equal(t, "redis://cache.internal:6379/0", cfg.Redis.RedisURL())
	assert.False(t, cfg.Features.IsEnabled(FeatureWeeklyDigest, nil))
}

func TestLoad_BadZone(t *testing.T) {
	validEnv(t)
	t.Setenv("PROGRESSION_DAY_ZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROGRESSION_DAY_ZONE")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("APP_ENV", "production")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET")
	assert.Contains(t, msg, "DATABASE_URL is required in production")
	assert.Contains(t, msg, "GEMINI_API_KEY")
	assert.Contains(t, msg, "HTTP_PORT")
}

func TestValidate_LLMDisabledNeedsNoKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("FEATURE_LLM", "false")

	_, err := Load()
	assert.NoError(t, err)
}

func TestRedisURL(t *testing.T) {
	assert.Equal(t, "redis://x:6379/0", RedisConfig{URL: "redis://x:6379/0", Host: "ignored"}.RedisURL())
	assert.Equal(t, "redis://:secret@h:6380/2", RedisConfig{Host: "h", Port: 6380, DB: 2, Password: "secret"}.RedisURL())
	assert.Empty(t, RedisConfig{URL: "redis://x", Disabled: true}.RedisURL())
}

// ─────────────────────────────────────────────────────────────────────────────
// Feature flags
// ─────────────────────────────────────────────────────────────────────────────

func TestFeatureFlags_EnvPercent(t *testing.T) {
	t.Setenv("FEATURE_STREAK_REMINDERS", "30")
	ff := LoadFeatureFlags()

	all := ff.GetAllFeatures()
	assert.Equal(t, 30, all[FeatureStreakReminders].RolloutPercent)
	assert.True(t, ff.IsEnabled(FeatureStreakReminders, nil))

	on := 0
	for i := 0; i < 1000; i++ {
		if ff.ForUser(FeatureStreakReminders, "user-"+strconv.Itoa(i)) {
			on++
		}
	}
	assert.InDelta(t, 300, on, 100)
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureLLM, 50))

	first := ff.ForUser(FeatureLLM, "alice")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.ForUser(FeatureLLM, "alice"))
	}
}

func TestFeatureFlags_Overrides(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureRegistration))

	assert.False(t, ff.ForUser(FeatureRegistration, "alice"))
	assert.True(t, ff.IsEnabled(FeatureRegistration, &FeatureContext{UserID: "root", IsAdmin: true}))

	ff.SetUserOverride("alice", FeatureRegistration, true)
	assert.True(t, ff.ForUser(FeatureRegistration, "alice"))

	ff.ClearUserOverrides("alice")
	assert.False(t, ff.ForUser(FeatureRegistration, "alice"))
}

func TestFeatureFlags_TimeWindow(t *testing.T) {
	ff := NewFeatureFlags()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ff.now = func() time.Time { return now }

	later := now.Add(time.Hour)
	ff.features[FeatureWeeklyDigest].EnabledFrom = &later
	assert.False(t, ff.IsEnabled(FeatureWeeklyDigest, nil))

	now = later.Add(time.Minute)
	assert.True(t, ff.IsEnabled(FeatureWeeklyDigest, nil))
}

func TestFeatureFlags_Errors(t *testing.T) {
	ff := NewFeatureFlags()
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureLLM, 101), ErrInvalidRolloutPercent)
	assert.False(t, ff.IsEnabled("nope", nil))
}
