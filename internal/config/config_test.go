package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "REMOTE_ACTIVITIES_ENABLED", "MUTATION_TIMEOUT", "STATS_TIMEOUT", "FRIEND_SYNC_INTERVAL", "STATS_CACHE_TTL", "RATE_LIMIT_PER_SECOND", "RATE_LIMIT_BURST", "NOTIFICATION_WORKERS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.True(t, cfg.RemoteActivitiesEnabled)
	assert.Equal(t, 8*time.Second, cfg.MutationTimeout)
	assert.Equal(t, 10*time.Second, cfg.StatsTimeout)
	assert.Equal(t, 30*time.Second, cfg.FriendSyncInterval)
	assert.Equal(t, 2*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, 10.0, cfg.RateLimitPerSecond)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 4, cfg.NotificationWorkers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("REMOTE_ACTIVITIES_ENABLED", "false")
	t.Setenv("MUTATION_TIMEOUT", "3s")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.RemoteActivitiesEnabled)
	assert.Equal(t, 3*time.Second, cfg.MutationTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STATS_TIMEOUT", "soon")
	_, err := Load("testdata/missing.env")
	assert.Error(t, err)

	t.Setenv("STATS_TIMEOUT", "")
	t.Setenv("FRIEND_SYNC_INTERVAL", "-1s")
	_, err = Load("testdata/missing.env")
	assert.Error(t, err)

	t.Setenv("FRIEND_SYNC_INTERVAL", "")
	t.Setenv("NOTIFICATION_WORKERS", "0")
	_, err = Load("testdata/missing.env")
	assert.Error(t, err)
}

func TestRequireServer(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireServer())

	cfg.ClerkSecretKey = "sk"
	cfg.DatabaseURL = "postgres://x"
	assert.NoError(t, cfg.RequireServer())
}
