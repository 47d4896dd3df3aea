package assessmentcache

import (
	"errors"

	"github.com/huykn/assessment-cache/backend"
	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/service"
)

// ErrCacheClosed is returned when operations are performed on a closed cache.
var ErrCacheClosed = cache.ErrCacheClosed

// ErrInvalidConfig is returned when the configuration is invalid.
var ErrInvalidConfig = errors.New("invalid assessment configuration")

// ErrBackend is returned for every failed verification call.
var ErrBackend = backend.ErrBackend

// ErrCredential is returned when enterprise credentials cannot be obtained.
var ErrCredential = backend.ErrCredential

// ErrMissingPayload is returned for events without a verification payload.
var ErrMissingPayload = service.ErrMissingPayload

// ErrInvalidPayload is returned when the verification payload cannot be
// decoded.
var ErrInvalidPayload = service.ErrInvalidPayload

// ErrRedisConnection is returned when Redis connection fails.
var ErrRedisConnection = errors.New("redis connection failed")
