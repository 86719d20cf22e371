// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultAddr       = "127.0.0.1:31337"
	DefaultMaxClients = 64

	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute

	DefaultOpsAddr = "127.0.0.1:9121"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultMap returns the defaults as dotted koanf keys, forming the
// lowest layer of the configuration merge.
func DefaultMap() map[string]any {
	return map[string]any{
		"server.addr":          DefaultAddr,
		"server.max_clients":   DefaultMaxClients,
		"server.read_timeout":  DefaultReadTimeout,
		"server.write_timeout": DefaultWriteTimeout,
		"server.idle_timeout":  DefaultIdleTimeout,
		"server.rate_limit":    0,
		"ops.enabled":          false,
		"ops.addr":             DefaultOpsAddr,
		"log.level":            DefaultLogLevel,
		"log.format":           DefaultLogFormat,
	}
}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:         DefaultAddr,
			MaxClients:   DefaultMaxClients,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			RateLimit:    0,
		},
		Ops: OpsSection{
			Enabled: false,
			Addr:    DefaultOpsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
