package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration with sensible defaults for local dev.
type Config struct {
	Port      int    // HTTP port (default 8080)
	BaseURL   string // prefix of every short link, no trailing slash
	ClientURL string // frontend origin; password-gated redirects go to ClientURL/password/:code

	DatabaseURL string // Postgres DSN; empty keeps everything in memory

	RedisAddr     string // empty disables the L2 cache and the shared rate limiter
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	GeoIPPath  string // GeoLite2/GeoIP2 City .mmdb
	GeoTimeout time.Duration

	RateLimit  int
	RateWindow time.Duration

	CodeLength     int
	ListLimit      int
	AnalyticsLimit int

	CacheSize     int           // L1 entries, 0 disables L1
	CacheTTL      time.Duration // L1
	RedisCacheTTL time.Duration // L2

	BcryptCost int
	TrustProxy bool // take the requester address from X-Forwarded-For
}

// FromEnv loads configuration from environment variables, falling back to defaults.
// A local ".env" is loaded first if present; real environment variables win.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := Config{
		Port:      getEnvInt("PORT", 8080),
		BaseURL:   sanitizeBaseURL(getEnv("BASE_URL", "http://localhost:8080")),
		ClientURL: strings.TrimRight(getEnv("CLIENT_URL", ""), "/"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		GeoIPPath:  getEnv("GEOIP_DB", ""),
		GeoTimeout: getEnvDuration("GEO_TIMEOUT", 500*time.Millisecond),

		RateLimit:  getEnvInt("RATE_LIMIT", 10),
		RateWindow: getEnvDuration("RATE_WINDOW", time.Minute),

		CodeLength:     getEnvInt("CODE_LENGTH", 6),
		ListLimit:      getEnvInt("LIST_LIMIT", 20),
		AnalyticsLimit: getEnvInt("ANALYTICS_LIMIT", 50),

		CacheSize:     getEnvInt("CACHE_SIZE", 1000),
		CacheTTL:      getEnvDuration("CACHE_TTL", 30*time.Second),
		RedisCacheTTL: getEnvDuration("REDIS_CACHE_TTL", 5*time.Minute),

		BcryptCost: getEnvInt("BCRYPT_COST", 10),
		TrustProxy: getEnvBool("TRUST_PROXY", false),
	}

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.CacheSize < 0 {
		cfg.CacheSize = 0
	}
	return cfg
}

// Addr returns the HTTP listen address, e.g. ":8080".
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: %s=%q is not an integer, using %d", key, v, def)
	}
	return def
}

// getEnvDuration accepts Go durations ("90s", "1m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: %s=%q is not a duration, using %v", key, v, def)
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func sanitizeBaseURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return "http://localhost:8080"
	}
	return s
}
