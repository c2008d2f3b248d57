package server

import "time"

// Config holds server configuration settings.
type Config struct {
	Host             string        // Server host address
	Port             int           // Server port
	DataDir          string        // Data directory for the backing page file
	PoolSizePerShard int           // Buffer pool frames per shard (1 frame = 4KB)
	NumShards        int           // Parallel buffer pool shard count
	ReadTimeout      time.Duration // HTTP read timeout
	WriteTimeout     time.Duration // HTTP write timeout
	IdleTimeout      time.Duration // HTTP idle timeout
	MaxRequestSize   int64         // Maximum request body size in bytes
	EnableCORS       bool          // Enable CORS middleware
	AllowedOrigins   []string      // CORS allowed origins
	EnableLogging    bool          // Enable request logging

	// TLS/SSL configuration
	EnableTLS   bool   // Enable TLS/SSL
	TLSCertFile string // Path to TLS certificate file
	TLSKeyFile  string // Path to TLS private key file

	// GraphQL configuration
	EnableGraphQL bool // Enable GraphQL API endpoint
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:             "localhost",
		Port:             8080,
		DataDir:          "./data",
		PoolSizePerShard: 1000, // 1000 frames = ~4MB per shard
		NumShards:        1,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		IdleTimeout:      120 * time.Second,
		MaxRequestSize:   10 * 1024 * 1024, // 10MB
		EnableCORS:       true,
		AllowedOrigins:   []string{"*"},
		EnableLogging:    true,
		EnableTLS:        false,
		TLSCertFile:      "",
		TLSKeyFile:       "",
		EnableGraphQL:    false,
	}
}
