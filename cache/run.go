package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run tracks the end-to-end processing of one inbound event. Callbacks
// registered with OnComplete fire once, when Complete is called.
type Run struct {
	id        string
	startedAt time.Time

	mu        sync.Mutex
	callbacks []func()
	seen      map[string]struct{}
	completed bool
}

// NewRun starts tracking a new event.
func NewRun() *Run {
	return &Run{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		seen:      make(map[string]struct{}),
	}
}

// ID returns the unique run identifier.
func (r *Run) ID() string {
	return r.id
}

// Elapsed returns the time since the run started.
func (r *Run) Elapsed() time.Duration {
	return time.Since(r.startedAt)
}

// OnComplete registers fn under id. Only the first registration per id is
// kept; it reports whether fn was registered. If the run already completed,
// fn runs immediately, even for an id seen before.
func (r *Run) OnComplete(id string, fn func()) bool {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		fn()
		return true
	}
	if _, ok := r.seen[id]; ok {
		r.mu.Unlock()
		return false
	}
	r.seen[id] = struct{}{}
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
	return true
}

// Complete runs the registered callbacks in registration order. Calls after
// the first are no-ops.
func (r *Run) Complete() {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	callbacks := r.callbacks
	r.callbacks = nil
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Completed reports whether Complete has been called.
func (r *Run) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}
