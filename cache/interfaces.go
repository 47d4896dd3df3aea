package cache

import (
	"context"

	"github.com/huykn/assessment-cache/types"
)

// Logger defines the interface for logging in the assessment cache.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)
}

// LocalCache defines the interface for the in-process store holding
// completed assessments.
type LocalCache interface {
	// Get retrieves a value from the local cache.
	Get(key string) (any, bool)

	// Set stores a value in the local cache.
	Set(key string, value any, cost int64) bool

	// Delete removes a value from the local cache.
	Delete(key string)

	// Clear removes all values from the local cache.
	Clear()

	// Close closes the local cache.
	Close()

	// Metrics returns cache metrics.
	Metrics() LocalCacheMetrics
}

// LocalCacheMetrics represents local cache metrics.
type LocalCacheMetrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
}

// LocalCacheFactory defines the interface for creating local cache implementations.
type LocalCacheFactory interface {
	// Create creates a new local cache instance.
	Create() (LocalCache, error)
}

// ComputeFunc performs the backend call for a key. It is invoked by exactly
// one owner per key at a time.
type ComputeFunc func(ctx context.Context) (*types.Assessment, error)

// Cache defines the request-coalescing assessment cache.
type Cache interface {
	// GetOrCompute returns the assessment for key. Concurrent callers for the
	// same key share a single invocation of fn. A successful result stays
	// cached until the cleanup registered on run fires; a failure is never
	// cached and is returned to the owner only.
	GetOrCompute(ctx context.Context, run *Run, key EventKey, fn ComputeFunc) (*types.Assessment, error)

	// Remove drops the entry for key. Called by the end-of-event cleanup.
	Remove(key EventKey)

	// Close closes the cache and releases all resources.
	Close() error

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Coalesced int64
	Failures  int64
	Cleanups  int64
	Pending   int64
	Local     LocalCacheMetrics
}
