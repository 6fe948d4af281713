package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	redisclient "github.com/cryptofundraises/tracker/internal/infrastructure/clients/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultBufferSize = 100

var errBusClosed = errors.New("event bus closed")

// Option configures a RedisEventBus
type Option func(*RedisEventBus)

// WithBufferSize sets the per-subscriber buffer. Events beyond it are dropped.
func WithBufferSize(n int) Option {
	return func(b *RedisEventBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithDropHandler is called with the channel name whenever a subscriber
// misses an event
func WithDropHandler(fn func(channel string)) Option {
	return func(b *RedisEventBus) {
		b.onDrop = fn
	}
}

// channelState is one Redis subscription shared by every local subscriber
// of that channel
type channelState struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.FundraiseEvent]struct{}
}

// RedisEventBus fans out fundraise events over Redis Pub/Sub
type RedisEventBus struct {
	client     *redisclient.Client
	bufferSize int
	onDrop     func(channel string)

	mu       sync.RWMutex
	channels map[string]*channelState

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client, opts ...Option) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisEventBus{
		client:     client,
		bufferSize: defaultBufferSize,
		channels:   make(map[string]*channelState),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends an event to every process subscribed to channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.FundraiseEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := b.client.Client().Publish(ctx, channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_type", string(event.EventType)).
		Str("slug", event.Slug).
		Int64("receivers", receivers).
		Msg("published event")
	return nil
}

// Subscribe returns a channel of events that stays open until ctx is done,
// Unsubscribe or Close is called. The first subscriber of a channel waits for
// Redis to confirm the subscription.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.FundraiseEvent, error) {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, errBusClosed
	}

	state, ok := b.channels[channel]
	if !ok {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			b.mu.Unlock()
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		state = &channelState{
			pubsub:      pubsub,
			subscribers: make(map[chan *entities.FundraiseEvent]struct{}),
		}
		b.channels[channel] = state
		go b.fanOut(channel, state)
	}

	events := make(chan *entities.FundraiseEvent, b.bufferSize)
	state.subscribers[events] = struct{}{}
	count := len(state.subscribers)
	b.mu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", count).Msg("subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, events)
	}()

	return events, nil
}

// fanOut copies every Redis message to the local subscribers without
// blocking on slow readers
func (b *RedisEventBus) fanOut(channel string, state *channelState) {
	messages := state.pubsub.Channel()
	for msg := range messages {
		event := &entities.FundraiseEvent{}
		if err := json.Unmarshal([]byte(msg.Payload), event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("failed to unmarshal event")
			continue
		}

		b.mu.RLock()
		for subscriber := range state.subscribers {
			select {
			case subscriber <- event:
			default:
				log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, dropping event")
				if b.onDrop != nil {
					b.onDrop(channel)
				}
			}
		}
		b.mu.RUnlock()
	}

	// The Redis channel closed underneath us; release whoever is left.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels[channel] == state {
		if err := b.closeChannelLocked(channel, state); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("failed to close subscription")
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, events chan *entities.FundraiseEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.channels[channel]
	if !ok {
		return
	}
	if _, ok := state.subscribers[events]; !ok {
		return
	}

	delete(state.subscribers, events)
	close(events)

	if len(state.subscribers) == 0 {
		if err := b.closeChannelLocked(channel, state); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("failed to close subscription")
		}
	}
}

// closeChannelLocked closes every subscriber and the Redis subscription.
// b.mu must be held.
func (b *RedisEventBus) closeChannelLocked(channel string, state *channelState) error {
	for subscriber := range state.subscribers {
		close(subscriber)
	}
	state.subscribers = nil
	delete(b.channels, channel)

	if err := state.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("closed subscription")
	return nil
}

// Unsubscribe closes every local subscriber of channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.channels[channel]
	if !ok {
		return nil
	}
	return b.closeChannelLocked(channel, state)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for channel, state := range b.channels {
		if err := b.closeChannelLocked(channel, state); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing event bus: %w", errors.Join(errs...))
	}

	log.Info().Msg("event bus closed")
	return nil
}
