package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/huykn/assessment-cache/types"
)

// call is a Pending entry. done is closed once val or err is set.
type call struct {
	done    chan struct{}
	val     *types.Assessment
	err     error
	discard bool
}

// CoalescingCache ensures at most one compute call is in flight per key and
// keeps the completed assessment until the owning event's run completes.
//
// Pending entries live in pending; completed entries live in the local
// store. Both are only mutated under mu, so a caller always observes a key
// as exactly one of Absent, Pending or Completed.
type CoalescingCache struct {
	mu      sync.Mutex
	pending map[EventKey]*call
	local   LocalCache
	logger  Logger
	options Options
	closed  int32
	stats   Stats
}

var _ Cache = (*CoalescingCache)(nil)

// New creates a new CoalescingCache instance.
func New(opts Options) (*CoalescingCache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// Set defaults for optional fields
	if opts.LocalCacheFactory == nil {
		opts.LocalCacheFactory = NewLRUCacheFactory(opts.LocalCacheConfig.MaxSize)
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}

	local, err := opts.LocalCacheFactory.Create()
	if err != nil {
		return nil, err
	}

	return &CoalescingCache{
		pending: make(map[EventKey]*call),
		local:   local,
		logger:  opts.Logger,
		options: opts,
	}, nil
}

// GetOrCompute returns the assessment for key, invoking fn only when no
// other caller owns the key and no completed value is stored.
func (cc *CoalescingCache) GetOrCompute(ctx context.Context, run *Run, key EventKey, fn ComputeFunc) (*types.Assessment, error) {
	if atomic.LoadInt32(&cc.closed) != 0 {
		return nil, ErrCacheClosed
	}

	for {
		cc.mu.Lock()

		if c, ok := cc.pending[key]; ok {
			cc.mu.Unlock()
			cc.record(&cc.stats.Coalesced)
			if cc.options.DebugMode {
				cc.logger.Debug("GetOrCompute: waiting on pending entry", "key", key.String())
			}

			select {
			case <-c.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			if c.err == nil {
				return c.val, nil
			}
			// The owner failed and the entry is gone; try to become the owner.
			if cc.options.DebugMode {
				cc.logger.Debug("GetOrCompute: owner failed, retrying", "key", key.String(), "error", c.err)
			}
			continue
		}

		if value, found := cc.local.Get(key.String()); found {
			cc.mu.Unlock()
			if assessment, ok := value.(*types.Assessment); ok {
				cc.record(&cc.stats.Hits)
				if cc.options.DebugMode {
					cc.logger.Debug("GetOrCompute: returning cached assessment", "key", key.String())
				}
				return assessment, nil
			}
			return nil, fmt.Errorf("%w: %T", ErrUnexpectedEntry, value)
		}

		c := &call{done: make(chan struct{})}
		cc.pending[key] = c
		cc.mu.Unlock()

		cc.record(&cc.stats.Misses)
		atomic.AddInt64(&cc.stats.Pending, 1)
		if cc.options.DebugMode {
			cc.logger.Debug("GetOrCompute: computing assessment", "key", key.String())
		}

		if run != nil {
			run.OnComplete(key.String(), func() { cc.Remove(key) })
		}

		return cc.execute(ctx, key, c, fn)
	}
}

// execute runs fn as the owner of key and resolves the pending entry. A
// panicking fn still releases the waiters before the panic propagates.
func (cc *CoalescingCache) execute(ctx context.Context, key EventKey, c *call, fn ComputeFunc) (val *types.Assessment, err error) {
	normalReturn := false
	defer func() {
		if normalReturn {
			return
		}
		if r := recover(); r != nil {
			c.err = fmt.Errorf("%w: %v", ErrComputePanicked, r)
			cc.resolve(key, c)
			panic(r)
		}
	}()

	val, err = fn(ctx)
	if err == nil && val == nil {
		err = ErrNilAssessment
	}
	normalReturn = true

	c.val, c.err = val, err
	cc.resolve(key, c)

	if err != nil {
		cc.record(&cc.stats.Failures)
		if cc.options.OnError != nil {
			cc.options.OnError(err)
		}
		if cc.options.DebugMode {
			cc.logger.Debug("GetOrCompute: compute failed, entry removed", "key", key.String(), "error", err)
		}
		return nil, err
	}
	return val, nil
}

// resolve moves key out of Pending: to Completed on success, to Absent on
// failure or when a cleanup already ran for it.
func (cc *CoalescingCache) resolve(key EventKey, c *call) {
	cc.mu.Lock()
	if c.err == nil && !c.discard {
		cc.local.Set(key.String(), c.val, 1)
	}
	if cc.pending[key] == c {
		delete(cc.pending, key)
	}
	cc.mu.Unlock()

	atomic.AddInt64(&cc.stats.Pending, -1)
	close(c.done)
}

// Remove drops the entry for key. A call still in flight delivers its
// result to its waiters but does not store it.
func (cc *CoalescingCache) Remove(key EventKey) {
	cc.mu.Lock()
	cc.local.Delete(key.String())
	if c, ok := cc.pending[key]; ok {
		c.discard = true
	}
	cc.mu.Unlock()

	cc.record(&cc.stats.Cleanups)
	if cc.options.DebugMode {
		cc.logger.Debug("Remove: entry cleaned up", "key", key.String())
	}
}

// Close closes the cache and releases all resources.
func (cc *CoalescingCache) Close() error {
	if !atomic.CompareAndSwapInt32(&cc.closed, 0, 1) {
		return nil
	}
	cc.local.Close()
	return nil
}

// Stats returns cache statistics.
func (cc *CoalescingCache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&cc.stats.Hits),
		Misses:    atomic.LoadInt64(&cc.stats.Misses),
		Coalesced: atomic.LoadInt64(&cc.stats.Coalesced),
		Failures:  atomic.LoadInt64(&cc.stats.Failures),
		Cleanups:  atomic.LoadInt64(&cc.stats.Cleanups),
		Pending:   atomic.LoadInt64(&cc.stats.Pending),
		Local:     cc.local.Metrics(),
	}
}

func (cc *CoalescingCache) record(counter *int64) {
	if cc.options.EnableMetrics {
		atomic.AddInt64(counter, 1)
	}
}

// ErrCacheClosed is returned when operations are performed on a closed cache.
var ErrCacheClosed = NewError("cache is closed")

// ErrNilAssessment is returned when a compute function returns neither a
// value nor an error.
var ErrNilAssessment = NewError("compute returned nil assessment")

// ErrComputePanicked is delivered to waiters when the owner's compute panics.
var ErrComputePanicked = NewError("compute panicked")

// ErrUnexpectedEntry is returned when the local store holds a foreign value.
var ErrUnexpectedEntry = NewError("unexpected cache entry")
