package cache

import "time"

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	ItemCount int64
}

// Config holds cache configuration
type Config struct {
	MaxEntries int           // Max cached resolution results (default: 1024)
	TTL        time.Duration // TTL for cache entries (default: 5 minutes)
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 1024,
		TTL:        5 * time.Minute,
	}
}
