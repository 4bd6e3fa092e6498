package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/growthfarm/internal/flagx"
	"github.com/dmitrijs2005/growthfarm/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so the file may say "5s" or give integer nanoseconds. Pointer
// fields distinguish "absent" from "empty".
type JsonConfig struct {
	APIBaseURL     *string         `json:"api_base_url"`
	StoreDriver    *string         `json:"store"`
	StorePath      *string         `json:"store_path"`
	RedisAddr      *string         `json:"redis_addr"`
	RedisPrefix    *string         `json:"redis_prefix"`
	StoreTimeout   *timex.Duration `json:"store_timeout"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	RecoveryScope  *string         `json:"recovery_scope"`
	LogLevel       *string         `json:"log_level"`
	OTelEndpoint   *string         `json:"otel_endpoint"`
}

// parseJson overlays cfg with the file named by -c or -config in args. No
// flag means no file; a missing or malformed file is an error.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.StoreDriver, jc.StoreDriver)
	setString(&cfg.StorePath, jc.StorePath)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.RedisPrefix, jc.RedisPrefix)
	setString(&cfg.RecoveryScope, jc.RecoveryScope)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.OTelEndpoint, jc.OTelEndpoint)
	if jc.StoreTimeout != nil {
		cfg.StoreTimeout = jc.StoreTimeout.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
