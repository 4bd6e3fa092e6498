package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays cfg with GROWTHFARM_* variables from environ. Unset
// variables leave the current value alone. A nil environ means no
// variables at all, not the process environment.
func parseEnv(cfg *Config, environ map[string]string) error {
	if environ == nil {
		environ = map[string]string{}
	}
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
