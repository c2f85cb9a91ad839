// Package config loads process configuration from the environment,
// falling back to .env for local development.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-wide server configuration (distinct from
// engine.Config, which is the proxy's own runtime-mutable target/enabled
// state).
type Config struct {
	Port         string
	AllowOrigins []string
}

// Load reads PORT and ALLOWED_ORIGINS from the environment, loading a
// .env file first if one is present (godotenv.Load is a no-op, not a
// fatal error, when none exists).
func Load() Config {
	_ = godotenv.Load()

	origins := getEnv("ALLOWED_ORIGINS", "*")
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed = append(allowed, o)
		}
	}

	return Config{
		Port:         getEnv("PORT", "3001"),
		AllowOrigins: allowed,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
