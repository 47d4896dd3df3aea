package assessmentcache

import (
	"github.com/huykn/assessment-cache/backend"
	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/service"
	"github.com/huykn/assessment-cache/types"
)

// Logger is an alias for cache.Logger.
type Logger = cache.Logger

// Cache is an alias for cache.Cache interface.
type Cache = cache.Cache

// Stats is an alias for cache.Stats.
type Stats = cache.Stats

// LocalCacheFactory is an alias for cache.LocalCacheFactory.
type LocalCacheFactory = cache.LocalCacheFactory

// LocalCacheConfig is an alias for cache.LocalCacheConfig.
type LocalCacheConfig = cache.LocalCacheConfig

// Backend is an alias for backend.Backend.
type Backend = backend.Backend

// Emitter is an alias for service.Emitter.
type Emitter = service.Emitter

// RowWriter is an alias for service.RowWriter.
type RowWriter = service.RowWriter

// OutputType is an alias for service.OutputType.
type OutputType = service.OutputType

// Event is an alias for types.Event.
type Event = types.Event

// Assessment is an alias for types.Assessment.
type Assessment = types.Assessment

// TableRef is an alias for types.TableRef.
type TableRef = types.TableRef

// DefaultLocalCacheConfig returns default local cache configuration.
func DefaultLocalCacheConfig() LocalCacheConfig {
	return cache.DefaultLocalCacheConfig()
}
