package config

import (
	"log"
	"os"
	"strconv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultPostgresDSN = "host=localhost user=user password=password dbname=coffeechat port=5432 sslmode=disable"
	defaultRedisAddr   = "localhost:6379"
	defaultJWTSecret   = "dev-only-secret-change-me"
	// Media arrives base64-encoded inside one WebSocket frame.
	defaultMaxEventBytes = 512 * 1024
)

// Config holds the runtime settings, loaded from the environment.
type Config struct {
	HTTPAddr    string
	PostgresDSN string
	RedisAddr   string
	RedisDB     int
	JWTSecret   string
	// EnforceLocation promotes the matcher's location comparison from a
	// soft signal to a hard filter.
	EnforceLocation bool
	// MaxEventBytes bounds a single inbound WebSocket frame.
	MaxEventBytes int64
}

// Load reads the configuration from environment variables, falling back to
// development defaults.
func Load() Config {
	return Config{
		HTTPAddr:        envOr("HTTP_ADDR", defaultHTTPAddr),
		PostgresDSN:     envOr("POSTGRES_DSN", defaultPostgresDSN),
		RedisAddr:       envOr("REDIS_ADDR", defaultRedisAddr),
		RedisDB:         envInt("REDIS_DB", 0),
		JWTSecret:       envOr("JWT_SECRET", defaultJWTSecret),
		EnforceLocation: envBool("MATCH_ENFORCE_LOCATION", false),
		MaxEventBytes:   int64(envInt("MAX_EVENT_BYTES", defaultMaxEventBytes)),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%v)", key, v, def)
			return def
		}
		return b
	}
	return def
}
