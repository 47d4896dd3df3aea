// Package assessmentcache verifies reCAPTCHA tokens carried by inbound events
// and shares each verification among every consumer of the same event.
package assessmentcache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/huykn/assessment-cache/backend"
	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/eventbus"
	"github.com/huykn/assessment-cache/service"
	"github.com/huykn/assessment-cache/storage"
	"github.com/huykn/assessment-cache/types"
)

const (
	// BackendV3 selects the site-verify backend.
	BackendV3 = "v3"

	// BackendEnterprise selects the enterprise assessments backend.
	BackendEnterprise = "enterprise"

	// StoreLRU keeps completed assessments in an LRU store.
	StoreLRU = "lru"

	// StoreLFU keeps completed assessments in a Ristretto store.
	StoreLFU = "lfu"
)

// Config configures a Pipeline.
type Config struct {
	// Version selects the backend: BackendV3 or BackendEnterprise.
	Version string

	// SecretKey is the site-verify secret (v3 only).
	SecretKey string

	// ProjectID is the Google Cloud project (enterprise only).
	ProjectID string

	// BackendURL overrides the backend endpoint.
	BackendURL string

	// TokenSource supplies enterprise credentials.
	// If nil, Google application default credentials are used.
	TokenSource oauth2.TokenSource

	// Timeout bounds each backend call.
	Timeout time.Duration

	// MaxInFlight caps concurrent backend calls. Zero means unbounded.
	MaxInFlight int64

	// Output selects what Evaluate returns: "score" or "json".
	Output string

	// DefaultOnMissing is returned for events without a payload.
	DefaultOnMissing any

	// DefaultOnError is returned when assessment fails.
	DefaultOnError any

	// LoggingEnabled turns on diagnostic logging.
	LoggingEnabled bool

	// LogLevel is used when Logger is nil and logging is enabled.
	LogLevel string

	// Logger is the logger for diagnostic output.
	// If nil and LoggingEnabled is set, a production zap logger is built.
	Logger Logger

	// DebugMode enables cache debug logging.
	DebugMode bool

	// EnableMetrics enables cache metrics collection.
	EnableMetrics bool

	// OnError is called when a backend call or a background event fails.
	OnError func(error)

	// LocalStore selects the completed-entry store: StoreLRU or StoreLFU.
	LocalStore string

	// LocalCacheConfig configures the completed-entry store.
	LocalCacheConfig LocalCacheConfig

	// LocalCacheFactory overrides LocalStore.
	LocalCacheFactory LocalCacheFactory

	// AttachToEventData re-emits events with the score attached.
	AttachToEventData bool

	// OutputToStore writes an analytics row per assessed event.
	OutputToStore bool

	// Table receives analytics rows.
	Table TableRef

	// RowStreamMaxLen caps each row stream. Zero means unbounded.
	RowStreamMaxLen int64

	// RedisAddr is the Redis server address (e.g., "localhost:6379").
	RedisAddr string

	// RedisPassword is the optional Redis password.
	RedisPassword string

	// RedisDB is the Redis database number.
	RedisDB int

	// EventChannel is the Redis pub/sub channel carrying events.
	EventChannel string

	// PodID identifies this instance on the event channel.
	// If empty, a random id is generated.
	PodID string

	// SerializationFormat specifies how rows and envelopes are encoded.
	SerializationFormat string

	// Backend overrides the backend built from Version.
	Backend Backend

	// Emitter overrides the Redis event bus used for re-emission.
	Emitter Emitter

	// Rows overrides the Redis row store.
	Rows RowWriter
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Version:             BackendV3,
		Timeout:             backend.DefaultTimeout,
		Output:              string(service.OutputScore),
		LogLevel:            "info",
		EnableMetrics:       true,
		LocalStore:          StoreLRU,
		LocalCacheConfig:    DefaultLocalCacheConfig(),
		RedisAddr:           "localhost:6379",
		EventChannel:        "assessment:events",
		SerializationFormat: "json",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Backend == nil {
		switch c.Version {
		case BackendV3:
			if c.SecretKey == "" {
				return fmt.Errorf("%w: secret key is required for %s", ErrInvalidConfig, BackendV3)
			}
		case BackendEnterprise:
			if c.ProjectID == "" {
				return fmt.Errorf("%w: project id is required for %s", ErrInvalidConfig, BackendEnterprise)
			}
		default:
			return fmt.Errorf("%w: unknown version %q", ErrInvalidConfig, c.Version)
		}
	}
	switch c.LocalStore {
	case "", StoreLRU, StoreLFU:
	default:
		return fmt.Errorf("%w: unknown local store %q", ErrInvalidConfig, c.LocalStore)
	}
	if c.OutputToStore && c.Table.TableID == "" {
		return fmt.Errorf("%w: table is required when writing rows", ErrInvalidConfig)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("%w: max in flight must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Pipeline evaluates events and runs every consumer of one event against a
// single shared verification.
type Pipeline struct {
	config    Config
	logger    Logger
	cache     *cache.CoalescingCache
	service   *service.Service
	processor *service.Processor
	client    *redis.Client
	bus       *eventbus.PubSubBus
	inbound   errgroup.Group
}

// defaultListenConcurrency bounds inbound bus events handled at once when
// MaxInFlight is not set.
const defaultListenConcurrency = 64

// New creates a Pipeline.
// This is the root-level initialization function that allows users to import from the root package.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		if cfg.LoggingEnabled || cfg.DebugMode {
			zl, err := cache.NewProductionZapLogger(cfg.LogLevel)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
			logger = zl
		} else {
			logger = cache.NewNoOpLogger()
		}
	}
	if cfg.PodID == "" {
		cfg.PodID = uuid.NewString()
	}

	factory := cfg.LocalCacheFactory
	if factory == nil && cfg.LocalStore == StoreLFU {
		factory = cache.NewLFUCacheFactory(cfg.LocalCacheConfig)
	}
	c, err := cache.New(cache.Options{
		LocalCacheConfig:  cfg.LocalCacheConfig,
		LocalCacheFactory: factory,
		Logger:            logger,
		DebugMode:         cfg.DebugMode,
		EnableMetrics:     cfg.EnableMetrics,
		OnError:           cfg.OnError,
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{config: cfg, logger: logger, cache: c}
	if cfg.MaxInFlight > 0 {
		p.inbound.SetLimit(int(cfg.MaxInFlight))
	} else {
		p.inbound.SetLimit(defaultListenConcurrency)
	}

	b, err := p.newBackend()
	if err != nil {
		p.Close()
		return nil, err
	}

	p.service, err = service.New(c, b, service.Options{
		Output:           service.OutputType(cfg.Output),
		DefaultOnMissing: cfg.DefaultOnMissing,
		DefaultOnError:   cfg.DefaultOnError,
		LoggingEnabled:   cfg.LoggingEnabled,
		Logger:           logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	emitter, rows, err := p.newSinks()
	if err != nil {
		p.Close()
		return nil, err
	}

	p.processor, err = service.NewProcessor(p.service, emitter, rows, service.ProcessorOptions{
		AttachToEventData: cfg.AttachToEventData,
		OutputToStore:     cfg.OutputToStore,
		Table:             cfg.Table,
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) newBackend() (Backend, error) {
	cfg := p.config

	b := cfg.Backend
	if b == nil {
		switch cfg.Version {
		case BackendEnterprise:
			ts := cfg.TokenSource
			if ts == nil {
				var err error
				ts, err = backend.NewGoogleTokenSource(context.Background(), backend.CloudPlatformScope)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", ErrCredential, err)
				}
			}
			e, err := backend.NewEnterprise(backend.EnterpriseConfig{
				ProjectID:          cfg.ProjectID,
				TokenSource:        ts,
				URL:                cfg.BackendURL,
				EnvironmentVersion: Version,
				Timeout:            cfg.Timeout,
				Logger:             p.logger,
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
			b = e
		default:
			b = backend.NewSiteVerify(backend.SiteVerifyConfig{
				SecretKey: cfg.SecretKey,
				URL:       cfg.BackendURL,
				Timeout:   cfg.Timeout,
				Logger:    p.logger,
			})
		}
	}

	return backend.NewLimited(b, cfg.MaxInFlight), nil
}

func (p *Pipeline) newSinks() (Emitter, RowWriter, error) {
	cfg := p.config
	emitter, rows := cfg.Emitter, cfg.Rows

	needBus := cfg.AttachToEventData && emitter == nil
	needRows := cfg.OutputToStore && rows == nil
	if !needBus && !needRows {
		return emitter, rows, nil
	}

	serializer, err := storage.GetSerializer(cfg.SerializationFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	p.client = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRedisConnection, err)
	}

	if needBus {
		p.bus = eventbus.NewPubSubBus(p.client, cfg.EventChannel, cfg.PodID).
			WithLogger(p.logger).
			WithSerializer(serializer)
		emitter = p.bus
	}
	if needRows {
		rows = storage.NewRedisRowStoreFromClient(p.client).
			WithSerializer(serializer).
			WithMaxLen(cfg.RowStreamMaxLen)
	}
	return emitter, rows, nil
}

// HandleEvent runs the variable and the tag consumers over event
// concurrently and returns the variable's value. Both consumers share one
// verification, which is released once they finish.
func (p *Pipeline) HandleEvent(ctx context.Context, event types.Event) (any, error) {
	run := cache.NewRun()
	defer run.Complete()

	var (
		value any
		g     errgroup.Group
	)
	g.Go(func() error {
		value = p.service.Evaluate(ctx, run, event)
		return nil
	})
	g.Go(func() error {
		return p.processor.Process(ctx, run, event)
	})

	err := g.Wait()
	if err != nil && p.config.OnError != nil {
		p.config.OnError(err)
	}
	return value, err
}

// Evaluate runs only the variable consumer for event.
func (p *Pipeline) Evaluate(ctx context.Context, event types.Event) any {
	run := cache.NewRun()
	defer run.Complete()
	return p.service.Evaluate(ctx, run, event)
}

// Listen subscribes to the event channel and handles every event published
// by other instances. It returns once the subscription is active.
func (p *Pipeline) Listen(ctx context.Context) error {
	if p.bus == nil {
		return fmt.Errorf("%w: event bus is not configured", ErrInvalidConfig)
	}
	p.bus.OnEvent(func(event types.Event) {
		p.dispatch(ctx, event)
	})
	return p.bus.Subscribe(ctx)
}

// dispatch handles event on its own goroutine. It blocks only while the
// inbound limit is reached; Close waits for dispatched events.
func (p *Pipeline) dispatch(ctx context.Context, event types.Event) {
	p.inbound.Go(func() error {
		if _, err := p.HandleEvent(ctx, event); err != nil {
			p.logger.Warn("handling bus event failed", "error", err)
		}
		return nil
	})
}

// Stats returns cache statistics.
func (p *Pipeline) Stats() Stats {
	return p.cache.Stats()
}

// Close stops listening, waits for inbound events in progress, then
// releases the cache and any Redis resources.
func (p *Pipeline) Close() error {
	var firstErr error
	if p.bus != nil {
		if err := p.bus.Close(); err != nil {
			firstErr = err
		}
	}
	p.inbound.Wait()
	if p.client != nil {
		if err := p.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if zl, ok := p.logger.(*cache.ZapLogger); ok && p.config.Logger == nil {
		zl.Sync()
	}
	return firstErr
}
