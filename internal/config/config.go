package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	RedisURL           string
	ClerkSecretKey     string
	ClerkWebhookSecret string
	FCMCredentialsFile string
	MetricsUser        string
	MetricsPass        string
	PprofSecret        string

	RateLimitPerSecond  float64
	RateLimitBurst      int
	NotificationWorkers int

	APIBaseURL   string
	SessionToken string

	RemoteActivitiesEnabled bool
	MutationTimeout         time.Duration
	StatsTimeout            time.Duration
	FriendSyncInterval      time.Duration
	StatsCacheTTL           time.Duration
}

// Load reads an optional .env file and then the environment. A missing .env
// is not an error; malformed values are.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	cfg := &Config{
		Port:               getEnv("PORT", "3333"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),
		FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		MetricsUser:        os.Getenv("METRICS_USER"),
		MetricsPass:        os.Getenv("METRICS_PASS"),
		PprofSecret:        os.Getenv("PPROF_SECRET"),
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:3333"),
		SessionToken:       os.Getenv("SESSION_TOKEN"),
	}

	var err error
	if cfg.RemoteActivitiesEnabled, err = getBool("REMOTE_ACTIVITIES_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.MutationTimeout, err = getDuration("MUTATION_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsTimeout, err = getDuration("STATS_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FriendSyncInterval, err = getDuration("FRIEND_SYNC_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsCacheTTL, err = getDuration("STATS_CACHE_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = getFloat("RATE_LIMIT_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.NotificationWorkers, err = getInt("NOTIFICATION_WORKERS", 4); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireServer checks the settings the API server cannot start without.
func (c *Config) RequireServer() error {
	if c.ClerkSecretKey == "" {
		return fmt.Errorf("CLERK_SECRET_KEY environment variable is not set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number", key, v)
	}
	return f, nil
}
