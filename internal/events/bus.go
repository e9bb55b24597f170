package events

import "context"

// Message is one raw payload received from a bus channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a live attachment to a set of bus channels. The gateway
// grows it dynamically as connections request channels it has not seen.
type Subscription interface {
	// Messages returns the channel on which received payloads are delivered.
	// It is closed when the subscription is closed.
	Messages() <-chan Message

	// Add subscribes to additional channels. Idempotent per channel.
	Add(ctx context.Context, channels ...string) error

	// Close tears down the subscription and closes Messages.
	Close() error
}

// Bus is the publish/subscribe transport between the write pipeline and the
// gateway. Channels need no pre-declaration; publishing to a channel with no
// subscribers is a no-op.
type Bus interface {
	// Publish sends payload to every current subscriber of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe attaches to the given channels.
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}
