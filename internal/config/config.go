// Package config provides configuration helpers for go-nearby commands.
package config

import (
	"fmt"
	"os"
)

// Default presence store configuration.
const (
	DefaultRedisAddr = "localhost:6379"
	DefaultHTTPPort  = "8090"
)

// RedisAddr returns the Redis address from REDIS_ADDR env var.
// Falls back to the provided default if not set.
func RedisAddr(defaultAddr string) string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// GatewayURL returns the presence gateway URL from GATEWAY_URL env var.
// Empty if not set; the Redis store is used instead.
func GatewayURL() string {
	return os.Getenv("GATEWAY_URL")
}

// DestinationRequired returns the destination from DESTINATION env var.
// Exits if not set.
func DestinationRequired() string {
	dest := os.Getenv("DESTINATION")
	if dest == "" {
		fmt.Fprintln(os.Stderr, "Error: DESTINATION environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: DESTINATION=lisbon go run ./cmd/nearby")
		os.Exit(1)
	}
	return dest
}

// HTTPPort returns the dashboard port from HTTP_PORT env var.
// Falls back to the provided default if not set.
func HTTPPort(defaultPort string) string {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		return port
	}
	return defaultPort
}
