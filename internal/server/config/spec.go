// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for minikv-server.
type ServerConfig struct {
	Server ServerSection `koanf:"server"`
	Ops    OpsSection    `koanf:"ops"`
	Log    LogSection    `koanf:"log"`
}

// ServerSection configures the wire protocol listener.
type ServerSection struct {
	// Addr is the TCP listen address.
	Addr string `koanf:"addr"`

	// MaxClients is the hard cap on simultaneously active sessions.
	MaxClients int `koanf:"max_clients"`

	// ReadTimeout bounds reading one request once it has started arriving.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// IdleTimeout bounds quiet time between requests on a connection.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is the maximum requests per second per client IP.
	// 0 disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// OpsSection configures the operational HTTP endpoint
// (/metrics, /healthz, /version).
type OpsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
