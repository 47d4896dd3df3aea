// Package eventbus carries updated events between instances over Redis
// Pub/Sub.
package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/storage"
	"github.com/huykn/assessment-cache/types"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// PubSubBus publishes and receives events on a Redis channel.
type PubSubBus struct {
	client         *redis.Client
	channel        string
	sender         string
	serializer     storage.Serializer
	logger         cache.Logger
	pubsub         *redis.PubSub
	callbacks      []func(event types.Event)
	callbacksMutex sync.RWMutex
	done           chan struct{}
	closeOnce      sync.Once
	wg             sync.WaitGroup
}

// NewPubSubBus creates a bus on channel. Envelopes published by sender are
// ignored by this instance.
func NewPubSubBus(client *redis.Client, channel, sender string) *PubSubBus {
	return &PubSubBus{
		client:     client,
		channel:    channel,
		sender:     sender,
		serializer: storage.NewJSONSerializer(),
		logger:     cache.NewNoOpLogger(),
		callbacks:  make([]func(event types.Event), 0),
		done:       make(chan struct{}),
	}
}

// WithLogger sets the logger used for undecodable messages.
func (ps *PubSubBus) WithLogger(logger cache.Logger) *PubSubBus {
	if logger != nil {
		ps.logger = logger
	}
	return ps
}

// WithSerializer replaces the envelope encoding.
func (ps *PubSubBus) WithSerializer(s storage.Serializer) *PubSubBus {
	if s != nil {
		ps.serializer = s
	}
	return ps
}

// Subscribe starts listening for events. It returns once Redis has
// confirmed the subscription.
func (ps *PubSubBus) Subscribe(ctx context.Context) error {
	ps.pubsub = ps.client.Subscribe(ctx, ps.channel)

	if _, err := ps.pubsub.Receive(ctx); err != nil {
		ps.pubsub.Close()
		ps.pubsub = nil
		return err
	}

	ps.wg.Add(1)
	go ps.listenForEvents()

	return nil
}

// Publish publishes an envelope.
func (ps *PubSubBus) Publish(ctx context.Context, envelope types.Envelope) error {
	select {
	case <-ps.done:
		return ErrBusClosed
	default:
	}

	data, err := ps.serializer.Marshal(envelope)
	if err != nil {
		return err
	}

	return ps.client.Publish(ctx, ps.channel, string(data)).Err()
}

// Reemit publishes event on behalf of this instance.
func (ps *PubSubBus) Reemit(ctx context.Context, event types.Event) error {
	return ps.Publish(ctx, types.Envelope{Sender: ps.sender, Event: event})
}

// OnEvent registers a callback for events from other senders.
func (ps *PubSubBus) OnEvent(callback func(event types.Event)) {
	ps.callbacksMutex.Lock()
	defer ps.callbacksMutex.Unlock()
	ps.callbacks = append(ps.callbacks, callback)
}

// Sender returns the identity stamped on published envelopes.
func (ps *PubSubBus) Sender() string {
	return ps.sender
}

// Close stops the listener. It is safe to call more than once.
func (ps *PubSubBus) Close() error {
	var err error
	ps.closeOnce.Do(func() {
		close(ps.done)
		if ps.pubsub != nil {
			err = ps.pubsub.Close()
		}
		ps.wg.Wait()
	})
	return err
}

func (ps *PubSubBus) listenForEvents() {
	defer ps.wg.Done()

	ch := ps.pubsub.Channel()

	for {
		select {
		case <-ps.done:
			return
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}

			var envelope types.Envelope
			if err := ps.serializer.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				ps.logger.Warn("dropping undecodable event", "channel", msg.Channel, "error", err)
				continue
			}

			if envelope.Sender == ps.sender {
				continue
			}

			ps.callbacksMutex.RLock()
			callbacks := ps.callbacks
			ps.callbacksMutex.RUnlock()

			for _, callback := range callbacks {
				callback(envelope.Event)
			}
		}
	}
}
