package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/taskhive/taskhive-api/internal/events"
)

// hub tracks which connections are subscribed to which channels and bridges
// the publish/subscribe bus to them. It holds one bus subscription that only
// ever grows: once an owner channel has been seen it stays subscribed for
// the life of the process, since bus traffic on a channel with no attached
// connections is cheap to drop here.
type hub struct {
	bus    events.Bus
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[string]map[*connection]struct{}
	sub      events.Subscription
}

func newHub(bus events.Bus, log *slog.Logger) *hub {
	return &hub{
		bus:      bus,
		channels: make(map[string]map[*connection]struct{}),
		logger:   log.With(slog.String("component", "gateway_hub")),
	}
}

// start opens the bus subscription on the global channel and launches the
// fan-out listener. The listener exits when the context is cancelled or the
// subscription closes.
func (h *hub) start(ctx context.Context) error {
	sub, err := h.bus.Subscribe(ctx, events.GlobalChannel)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.sub = sub
	h.mu.Unlock()

	go h.listen(ctx, sub)
	return nil
}

// stop closes the bus subscription, ending the listener.
func (h *hub) stop() {
	h.mu.Lock()
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			h.logger.Warn("failed to close bus subscription", slog.String("error", err.Error()))
		}
	}
}

// listen forwards every bus payload verbatim to the connections currently
// subscribed to its channel. A slow connection is handled inside enqueue and
// never blocks the loop.
func (h *hub) listen(ctx context.Context, sub events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			for _, c := range h.subscribers(msg.Channel) {
				c.enqueue(msg.Payload)
			}
		}
	}
}

func (h *hub) subscribers(channel string) []*connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.channels[channel]
	out := make([]*connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// subscribe attaches the connection to the channel, growing the bus
// subscription the first time the channel is seen.
func (h *hub) subscribe(ctx context.Context, c *connection, channel string) error {
	h.mu.Lock()
	set, known := h.channels[channel]
	if set == nil {
		set = make(map[*connection]struct{})
		h.channels[channel] = set
	}
	set[c] = struct{}{}
	sub := h.sub
	h.mu.Unlock()

	c.addChannel(channel)

	if !known && sub != nil && channel != events.GlobalChannel {
		if err := sub.Add(ctx, channel); err != nil {
			return err
		}
	}
	return nil
}

// unsubscribe detaches the connection from the channel. The bus subscription
// is left in place; payloads on a channel with no connections are dropped in
// listen.
func (h *hub) unsubscribe(c *connection, channel string) {
	h.mu.Lock()
	if set := h.channels[channel]; set != nil {
		delete(set, c)
	}
	h.mu.Unlock()

	c.removeChannel(channel)
}

// drop removes the connection from every channel. Called once on transport
// close.
func (h *hub) drop(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.channels {
		delete(set, c)
	}
}
