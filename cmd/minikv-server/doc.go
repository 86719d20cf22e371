// Package main provides the entry point for minikv-server.
//
// The server is the core minikv service that provides:
//
//   - A binary wire protocol listener for key-value access
//   - An optional operational HTTP endpoint (/metrics, /healthz, /version)
//
// Usage:
//
//	minikv-server [flags]
//	minikv-server --config /path/to/config.yaml
//
// The server loads configuration, initializes infrastructure components,
// and starts all configured listeners.
package main
