// Package main provides the entry point for minikv-cli.
//
// The CLI tool provides command-line access to a minikv server:
//
//   - get / set / delete for single keys
//   - mget / mset for batch access
//   - flush to clear the store
//
// Usage:
//
//	minikv-cli [command] [flags]
//	minikv-cli --server 127.0.0.1:31337 set name ada
//	minikv-cli get name
package main
