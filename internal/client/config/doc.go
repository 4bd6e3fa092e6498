// Package config loads runtime configuration for the GrowthFarm client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. GROWTHFARM_* environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string     backend base URL
//	-s string     SQLite database path
//	-store string store driver: sqlite, memory, redis
//	-r string     recovery scope: all, session
//	-t duration   store call timeout
//	-l string     log level
//
// # JSON schema
//
// Durations may be strings like "5s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://api.growthfarm.example",
//	  "store": "sqlite",
//	  "store_path": "/var/lib/growthfarm/client.db",
//	  "store_timeout": "5s",
//	  "request_timeout": "10s",
//	  "recovery_scope": "all",
//	  "log_level": "info"
//	}
//
// # Environment
//
// GROWTHFARM_API_BASE_URL, GROWTHFARM_STORE, GROWTHFARM_STORE_PATH,
// GROWTHFARM_REDIS_ADDR, GROWTHFARM_REDIS_PREFIX, GROWTHFARM_STORE_TIMEOUT,
// GROWTHFARM_REQUEST_TIMEOUT, GROWTHFARM_RECOVERY_SCOPE, GROWTHFARM_LOG_LEVEL,
// GROWTHFARM_OTEL_ENDPOINT.
package config
