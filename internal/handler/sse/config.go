package sse

import "time"

// Config holds SSE connection settings
type Config struct {
	// KeepAliveInterval is how often to ping idle connections.
	// 10s stays under the timeout of most reverse proxies.
	KeepAliveInterval time.Duration
}

// DefaultConfig returns the default SSE configuration
func DefaultConfig() *Config {
	return &Config{KeepAliveInterval: 10 * time.Second}
}
