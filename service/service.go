// Package service orchestrates key derivation, the coalescing cache and the
// verification backend for one inbound event.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/huykn/assessment-cache/backend"
	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/types"
)

// OutputType selects what Evaluate exposes.
type OutputType string

const (
	// OutputJSON exposes the whole assessment without the raw token.
	OutputJSON OutputType = "json"

	// OutputScore exposes only the numeric score.
	OutputScore OutputType = "score"
)

// ErrMissingPayload is returned by Assess when the event carries no
// verification payload.
var ErrMissingPayload = errors.New("event has no verification payload")

// ErrInvalidPayload is returned when the payload cannot be decoded.
var ErrInvalidPayload = errors.New("invalid verification payload")

// Options configures a Service.
type Options struct {
	// Output selects the Evaluate result shape. Defaults to OutputScore.
	Output OutputType

	// DefaultOnMissing is returned by Evaluate for events without a payload.
	DefaultOnMissing any

	// DefaultOnError is returned by Evaluate when assessment fails.
	DefaultOnError any

	// LoggingEnabled turns on diagnostic logging.
	LoggingEnabled bool

	// Logger receives diagnostic output. Defaults to no-op.
	Logger cache.Logger
}

// Service evaluates events against a backend through a coalescing cache.
type Service struct {
	cache   cache.Cache
	backend backend.Backend
	options Options
	logger  cache.Logger
}

// New creates a Service.
func New(c cache.Cache, b backend.Backend, opts Options) (*Service, error) {
	if c == nil || b == nil {
		return nil, fmt.Errorf("service: cache and backend are required")
	}
	switch opts.Output {
	case "":
		opts.Output = OutputScore
	case OutputJSON, OutputScore:
	default:
		return nil, fmt.Errorf("service: unknown output type %q", opts.Output)
	}
	if opts.Logger == nil || !opts.LoggingEnabled {
		opts.Logger = cache.NewNoOpLogger()
	}

	return &Service{
		cache:   c,
		backend: b,
		options: opts,
		logger:  opts.Logger,
	}, nil
}

// Assess returns the shared assessment for event. The returned value is
// shared with every other consumer of the same event and must not be
// modified.
func (s *Service) Assess(ctx context.Context, run *cache.Run, event types.Event) (*types.Assessment, error) {
	payload, ok, err := event.Recaptcha()
	if !ok {
		return nil, ErrMissingPayload
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	key, err := cache.DeriveKey(event)
	if err != nil {
		return nil, err
	}

	return s.cache.GetOrCompute(ctx, run, key, func(ctx context.Context) (*types.Assessment, error) {
		s.log(run, "processing assessment", "backend", s.backend.Name(), "key", key.String())
		return s.backend.Assess(ctx, backend.NewRequest(event, payload))
	})
}

// Evaluate returns the configured projection of the assessment, or the
// configured default when the event has no payload or assessment fails.
func (s *Service) Evaluate(ctx context.Context, run *cache.Run, event types.Event) any {
	assessment, err := s.Assess(ctx, run, event)
	if errors.Is(err, ErrMissingPayload) {
		return s.options.DefaultOnMissing
	}
	if err != nil {
		s.logError(run, "assessment failed", err)
		return s.options.DefaultOnError
	}

	if s.options.Output == OutputJSON {
		return assessment.Redacted()
	}
	return assessment.RiskAnalysis.Score
}

func (s *Service) log(run *cache.Run, msg string, args ...any) {
	s.logger.Info(msg, s.runFields(run, args)...)
}

func (s *Service) logError(run *cache.Run, msg string, err error) {
	args := []any{"error", err}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		args = append(args, "status", statusErr.StatusCode, "body", statusErr.Body)
	}
	s.logger.Error(msg, s.runFields(run, args)...)
}

func (s *Service) runFields(run *cache.Run, args []any) []any {
	if run == nil {
		return args
	}
	return append([]any{"run", run.ID(), "elapsedMs", run.Elapsed().Milliseconds()}, args...)
}
