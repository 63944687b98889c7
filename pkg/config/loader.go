package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from environment variables using `env` struct tags.
//
//	type Config struct {
//	    HTTPPort  int    `env:"IDENTITY_HTTP_PORT" envDefault:"8001"`
//	    LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
//	    JWTSecret string `env:"TENANT_JWT_SECRET,required"`
//	}
//
// Validation beyond type conversion belongs to the caller; this only maps
// the environment onto the struct.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
