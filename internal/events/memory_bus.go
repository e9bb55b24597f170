package events

import (
	"context"
	"sync"
)

// subscriberBuffer bounds each subscription's delivery queue. The in-memory
// bus mirrors the external backend's behavior: a subscriber that falls this
// far behind loses the oldest messages.
const subscriberBuffer = 256

// MemoryBus is an in-process Bus used by tests and single-process
// deployments. Production uses the Redis implementation in platform/redis.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Publish implements Bus.
func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[channel] {
		sub.deliver(Message{Channel: channel, Payload: payload})
	}
	return nil
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	sub := &memorySubscription{
		bus:      b,
		messages: make(chan Message, subscriberBuffer),
		channels: make(map[string]struct{}),
	}
	if err := sub.Add(ctx, channels...); err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *MemoryBus) attach(sub *memorySubscription, channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
}

func (b *MemoryBus) detach(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, set := range b.subs {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, channel)
		}
	}
}

type memorySubscription struct {
	bus      *MemoryBus
	messages chan Message

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.messages
}

func (s *memorySubscription) Add(_ context.Context, channels ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	for _, channel := range channels {
		if _, ok := s.channels[channel]; ok {
			continue
		}
		s.channels[channel] = struct{}{}
		s.bus.attach(s, channel)
	}
	return nil
}

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.bus.detach(s)
	close(s.messages)
	return nil
}

// deliver pushes a message, dropping the oldest queued one on overflow so a
// stalled subscriber never blocks the publishing side.
func (s *memorySubscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.messages <- msg:
			return
		default:
			select {
			case <-s.messages:
			default:
			}
		}
	}
}
