package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// GetEnv returns the value of an environment variable or a default.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvDuration returns a duration environment variable or a default.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("invalid duration for %s: %q, using default %s", key, v, def)
		return def
	}
	return d
}

// Config holds everything the server needs at startup.
type Config struct {
	Port             string
	DBPath           string
	EncryptionSecret string

	GeminiAPIKey string
	GeminiModel  string

	DiscourseBaseURL string
	LegacyBBSBaseURL string
	SocialBaseURL    string
	LinkAggBaseURL   string
	QABaseURL        string

	PrefetchDebounce time.Duration
	PrefetchInterval time.Duration
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port:             GetEnv("PORT", "8080"),
		DBPath:           GetEnv("DB_PATH", "data/feedflow.db"),
		EncryptionSecret: GetEnv("ENCRYPTION_SECRET", "FeedflowLocalEncryption2024"),
		GeminiAPIKey:     GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:      GetEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		DiscourseBaseURL: GetEnv("DISCOURSE_BASE_URL", "https://linux.do"),
		LegacyBBSBaseURL: GetEnv("LEGACY_BBS_BASE_URL", "https://www.4d4y.com/forum"),
		SocialBaseURL:    GetEnv("SOCIAL_BASE_URL", "https://www.zhihu.com"),
		LinkAggBaseURL:   GetEnv("LINK_AGG_BASE_URL", "https://hacker-news.firebaseio.com/v0"),
		QABaseURL:        GetEnv("QA_BASE_URL", "https://www.v2ex.com"),
		PrefetchDebounce: GetEnvDuration("PREFETCH_DEBOUNCE", 400*time.Millisecond),
		PrefetchInterval: GetEnvDuration("PREFETCH_INTERVAL", time.Second),
	}
}
