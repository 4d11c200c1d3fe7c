package pubsub

import (
	"time"

	"go.uber.org/zap"
)

// Config holds the configuration for a Router.
type Config struct {
	// DefaultQueueSize is the capacity of each lazily-created topic queue
	// (default: 1000). A value <= 0 means unbounded queues.
	DefaultQueueSize int

	// WorkerCount is the number of worker goroutines draining topic queues
	// (default: 1). Workers share one topics lock, so more workers raise
	// contention rather than partitioning work.
	WorkerCount int

	// ProcessingTimeout caps the time one worker spends draining a single
	// topic's batch before moving on (default: 100ms).
	ProcessingTimeout time.Duration

	// EnableStats toggles per-topic statistics collection (default: true).
	EnableStats bool

	// DedupWindow, when positive, drops republished messages whose ID was
	// already seen within the window. Zero disables deduplication.
	DedupWindow time.Duration

	// Logger receives lifecycle and delivery diagnostics. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		DefaultQueueSize:  1000,
		WorkerCount:       1,
		ProcessingTimeout: 100 * time.Millisecond,
		EnableStats:       true,
	}
}

// Option is a functional option for configuring a Router.
type Option func(*Config)

// WithDefaultQueueSize sets the capacity of lazily-created topic queues.
func WithDefaultQueueSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.DefaultQueueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(c *Config) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithProcessingTimeout caps the time a worker spends on one topic per scan.
func WithProcessingTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ProcessingTimeout = timeout
		}
	}
}

// WithStats enables or disables per-topic statistics collection.
func WithStats(enabled bool) Option {
	return func(c *Config) {
		c.EnableStats = enabled
	}
}

// WithDedupWindow enables publish-side deduplication by message ID within
// the given window.
func WithDedupWindow(window time.Duration) Option {
	return func(c *Config) {
		if window > 0 {
			c.DedupWindow = window
		}
	}
}

// WithLogger sets the logger used for router diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
