package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	redisclient "github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

const subscriberBuffer = 100

// RedisEventBus implements the EventBus interface using Redis Pub/Sub. Every
// Subscribe call owns its own Redis subscription, closed when its context ends
// or the bus is closed.
type RedisEventBus struct {
	client *redisclient.Client

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	return &RedisEventBus{
		client: client,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Msg("published event")
	return nil
}

// Subscribe delivers events on channel until ctx is done. The subscription is
// confirmed by Redis before Subscribe returns.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DomainEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("event bus is closed")
	}
	pubsub := b.client.Client().Subscribe(ctx, channel)
	b.subs[pubsub] = struct{}{}
	b.mu.Unlock()

	if _, err := pubsub.Receive(ctx); err != nil {
		b.drop(pubsub)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan *entities.DomainEvent, subscriberBuffer)
	b.wg.Add(1)
	go b.forward(ctx, channel, pubsub, out)
	return out, nil
}

func (b *RedisEventBus) forward(ctx context.Context, channel string, pubsub *redis.PubSub, out chan<- *entities.DomainEvent) {
	defer b.wg.Done()
	defer close(out)
	defer b.drop(pubsub)

	logger := observability.LoggerFromContext(ctx)
	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var event entities.DomainEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed event")
				continue
			}

			select {
			case out <- &event:
			default:
				logger.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, dropping event")
			}
		}
	}
}

func (b *RedisEventBus) drop(pubsub *redis.PubSub) {
	b.mu.Lock()
	_, ok := b.subs[pubsub]
	delete(b.subs, pubsub)
	b.mu.Unlock()
	if ok {
		_ = pubsub.Close()
	}
}

// Close closes all subscriptions and waits for their forwarders to exit
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for pubsub := range b.subs {
		subs = append(subs, pubsub)
	}
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	var errs []error
	for _, pubsub := range subs {
		if err := pubsub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	return errors.Join(errs...)
}
