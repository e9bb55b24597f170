package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/taskhive-api/internal/events"
)

// Close is called by both the gateway shutdown path and subscription owners;
// concurrent calls must not panic on a double channel close.
func TestBusSubscriptionCloseIsIdempotent(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	// Subscribing to no channels allocates the PubSub without touching the
	// network, which keeps this test independent of a live backend.
	sub := &busSubscription{
		pubsub:   client.Subscribe(context.Background()),
		messages: make(chan events.Message),
		done:     make(chan struct{}),
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sub.Close()
		}()
	}
	wg.Wait()

	require.NoError(t, sub.Close())

	select {
	case <-sub.done:
	default:
		t.Fatal("done channel must be closed after Close")
	}
}
