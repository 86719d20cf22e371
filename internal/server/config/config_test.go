package config

import (
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Verify(Default()); err != nil {
		t.Errorf("default configuration fails verification: %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:    "missing addr",
			mutate:  func(c *ServerConfig) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
		{
			name:    "addr without port",
			mutate:  func(c *ServerConfig) { c.Server.Addr = "localhost" },
			wantErr: "host:port",
		},
		{
			name:    "zero max clients",
			mutate:  func(c *ServerConfig) { c.Server.MaxClients = 0 },
			wantErr: "max_clients",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *ServerConfig) { c.Server.ReadTimeout = -1 },
			wantErr: "timeouts",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *ServerConfig) { c.Server.RateLimit = -5 },
			wantErr: "rate_limit",
		},
		{
			name: "bad ops addr when enabled",
			mutate: func(c *ServerConfig) {
				c.Ops.Enabled = true
				c.Ops.Addr = "nope"
			},
			wantErr: "ops.addr",
		},
		{
			name: "bad ops addr ignored when disabled",
			mutate: func(c *ServerConfig) {
				c.Ops.Enabled = false
				c.Ops.Addr = "nope"
			},
		},
		{
			name:    "unknown log level",
			mutate:  func(c *ServerConfig) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *ServerConfig) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultMap_MatchesDefault(t *testing.T) {
	m := DefaultMap()
	want := Default()

	checks := []struct {
		key  string
		want any
	}{
		{"server.addr", want.Server.Addr},
		{"server.max_clients", want.Server.MaxClients},
		{"server.read_timeout", want.Server.ReadTimeout},
		{"server.write_timeout", want.Server.WriteTimeout},
		{"server.idle_timeout", want.Server.IdleTimeout},
		{"server.rate_limit", want.Server.RateLimit},
		{"ops.enabled", want.Ops.Enabled},
		{"ops.addr", want.Ops.Addr},
		{"log.level", want.Log.Level},
		{"log.format", want.Log.Format},
	}

	for _, c := range checks {
		got, ok := m[c.key]
		if !ok {
			t.Errorf("DefaultMap missing %q", c.key)
			continue
		}
		if got != c.want {
			t.Errorf("DefaultMap[%q] = %v, want %v", c.key, got, c.want)
		}
	}

	if len(m) != len(checks) {
		t.Errorf("DefaultMap has %d keys, want %d", len(m), len(checks))
	}
}
