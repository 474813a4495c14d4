package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the environment-driven settings for the service. It is
// parsed once at startup; resolution code receives it by value and never
// re-reads the environment.
type Config struct {
	// Port is the HTTP listen port.
	Port string `env:"PORT" envDefault:"8080"`

	// LogLevel selects the slog level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// ClientIPHeader is an optional deployment-specific header name that
	// takes precedence over X-Forwarded-For when resolving the client IP.
	ClientIPHeader string `env:"CLIENT_IP_HEADER"`

	// SkipLocationHeaders disables the edge-header geolocation fast path,
	// forcing every lookup through the local database.
	SkipLocationHeaders bool `env:"SKIP_LOCATION_HEADERS"`

	// GeoDBPath overrides the default GeoLite2 City database location.
	GeoDBPath string `env:"GEO_DB_PATH"`

	// IgnoredIPs is a comma-separated list of IP literals and CIDR ranges
	// whose requests are dropped from the analytics stream.
	IgnoredIPs string `env:"IGNORED_IPS"`
}

var loadEnvFile sync.Once

// Load parses the process environment into a Config. A .env file in the
// working directory is applied first when present, matching local
// development setups; a missing file is not an error.
func Load() (Config, error) {
	loadEnvFile.Do(func() {
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
