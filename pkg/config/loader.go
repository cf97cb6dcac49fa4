// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct pointer using
// `env` and `envDefault` struct tags. Fields tagged `required` that are unset
// cause an error, which callers treat as a fatal startup failure.
//
//	type Config struct {
//	    HTTPPort  int           `env:"HTTP_PORT" envDefault:"8080"`
//	    JWTSecret string        `env:"JWT_SECRET,required"`
//	    TTL       time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
