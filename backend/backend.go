// Package backend talks to the reCAPTCHA verification endpoints and
// normalizes their responses into types.Assessment.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huykn/assessment-cache/types"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 5 * time.Second

// Request carries everything a backend needs to assess one token.
type Request struct {
	Token     string
	Action    string
	SiteKey   string
	RemoteIP  string
	UserAgent string
}

// NewRequest builds a Request from the event's verification payload and
// context fields.
func NewRequest(event types.Event, payload types.Recaptcha) Request {
	return Request{
		Token:     payload.Token,
		Action:    payload.Action,
		SiteKey:   payload.SiteKey,
		RemoteIP:  event.String(types.FieldIP),
		UserAgent: event.String(types.FieldUserAgent),
	}
}

// Backend assesses a token against an upstream verification service.
type Backend interface {
	// Assess returns the normalized assessment. Upstream failures, timeouts
	// and malformed responses are returned as errors matching ErrBackend.
	Assess(ctx context.Context, req Request) (*types.Assessment, error)

	// Name identifies the variant in logs.
	Name() string
}

// ErrBackend is matched by every error a backend returns.
var ErrBackend = errors.New("verification backend failed")

// ErrCredential is returned when a bearer token cannot be acquired. It
// matches ErrBackend.
var ErrCredential = fmt.Errorf("%w: credential unavailable", ErrBackend)

// StatusError reports a non-200 upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verification backend returned status %d: %s", e.StatusCode, e.Body)
}

// Is makes a StatusError match ErrBackend.
func (e *StatusError) Is(target error) bool {
	return target == ErrBackend
}

func wrap(op string, err error) error {
	if errors.Is(err, ErrBackend) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}
