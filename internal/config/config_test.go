package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "REDIS_ADDR", "SURVEY_CACHE_TTL",
		"ENABLE_LOCAL_AUTH", "SUBMIT_RATE_PER_MIN", "DEFAULT_LANGUAGE", "CORS_ORIGINS_OFFLINE"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ModeOffline, c.Mode)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Empty(t, c.RedisAddr)
	assert.Equal(t, 10*time.Minute, c.SurveyCacheTTL)
	assert.True(t, c.EnableLocalAuth)
	assert.Equal(t, 60, c.SubmitRatePerMin)
	assert.Equal(t, "en", c.DefaultLanguage)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3010"}, c.CORSOrigins())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("REDIS_ADDR", "redis://cache:6379")
	t.Setenv("SURVEY_CACHE_TTL", "90s")
	t.Setenv("SUBMIT_RATE_PER_MIN", "not-a-number")
	t.Setenv("SUBMIT_BURST", "3")
	t.Setenv("ENABLE_LOCAL_AUTH", "")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")

	c := FromEnv()
	assert.Equal(t, ModeOnline, c.Mode)
	assert.Equal(t, "cache:6379", c.RedisAddr)
	assert.Equal(t, 90*time.Second, c.SurveyCacheTTL)
	assert.Equal(t, 60, c.SubmitRatePerMin)
	assert.Equal(t, 3, c.SubmitBurst)
	assert.False(t, c.EnableLocalAuth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins())
}
