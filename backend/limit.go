package backend

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/huykn/assessment-cache/types"
)

// Limited bounds the number of concurrent calls to a Backend. Callers that
// cannot acquire a slot before their context ends fail with ErrBackend.
type Limited struct {
	next Backend
	sem  *semaphore.Weighted
}

// NewLimited wraps next. A non-positive maxInFlight returns next unchanged.
func NewLimited(next Backend, maxInFlight int64) Backend {
	if maxInFlight <= 0 {
		return next
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(maxInFlight)}
}

// Name returns the wrapped backend's name.
func (l *Limited) Name() string {
	return l.next.Name()
}

// Assess waits for a free slot, then delegates.
func (l *Limited) Assess(ctx context.Context, req Request) (*types.Assessment, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, wrap("acquire slot", err)
	}
	defer l.sem.Release(1)

	return l.next.Assess(ctx, req)
}
