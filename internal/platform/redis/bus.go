package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskhive/taskhive-api/internal/events"
)

// Bus implements events.Bus on Redis pub/sub.
type Bus struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewBus creates a Bus over the given client. opTimeout bounds publishes;
// subscriptions are long-lived and not subject to it.
func NewBus(client *redis.Client, opTimeout time.Duration) *Bus {
	return &Bus{
		client:    client,
		opTimeout: opTimeout,
	}
}

// Publish implements events.Bus.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opTimeout)
		defer cancel()
	}

	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements events.Bus. The returned subscription pumps Redis
// messages into its Messages channel until closed.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (events.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channels...)

	// Force the initial SUBSCRIBE round trip so a dead backend surfaces
	// here rather than as a silent, message-less subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &busSubscription{
		pubsub:   pubsub,
		messages: make(chan events.Message),
		done:     make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

type busSubscription struct {
	pubsub    *redis.PubSub
	messages  chan events.Message
	done      chan struct{}
	closeOnce sync.Once
}

func (s *busSubscription) Messages() <-chan events.Message {
	return s.messages
}

func (s *busSubscription) Add(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := s.pubsub.Subscribe(ctx, channels...); err != nil {
		return fmt.Errorf("redis subscribe add: %w", err)
	}
	return nil
}

// Close is safe to call more than once, including concurrently.
func (s *busSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// pump forwards Redis messages until the underlying channel closes.
func (s *busSubscription) pump() {
	defer close(s.messages)

	for msg := range s.pubsub.Channel() {
		select {
		case s.messages <- events.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-s.done:
			return
		}
	}
}
