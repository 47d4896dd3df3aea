package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huykn/assessment-cache/types"
)

type slowBackend struct {
	inFlight int32
	peak     int32
}

func (s *slowBackend) Name() string { return "slow" }

func (s *slowBackend) Assess(ctx context.Context, req Request) (*types.Assessment, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&s.inFlight, -1)
	return &types.Assessment{}, nil
}

func TestLimitedBoundsConcurrency(t *testing.T) {
	inner := &slowBackend{}
	limited := NewLimited(inner, 2)
	assert.Equal(t, "slow", limited.Name())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limited.Assess(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&inner.peak), int32(2))
}

func TestLimitedHonoursContext(t *testing.T) {
	inner := &slowBackend{}
	limited := NewLimited(inner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limited.Assess(ctx, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackend)
}

func TestNewLimitedDisabled(t *testing.T) {
	inner := &slowBackend{}
	assert.Same(t, Backend(inner), NewLimited(inner, 0))
}
