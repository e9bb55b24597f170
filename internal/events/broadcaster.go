package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/platform/logger"
)

// Broadcaster packages task mutations into typed events and publishes them
// to the owner-scoped and global channels. Publication is fire-and-forget:
// a publish failure is logged, never surfaced to the mutation caller, and
// never retried.
type Broadcaster struct {
	bus    Bus
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster over the given bus.
func NewBroadcaster(bus Bus, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		bus:    bus,
		logger: log.With(slog.String("component", "event_broadcaster")),
	}
}

// Publish sends the event for the given mutation kind and task, carrying
// any kind-specific extras. It runs after invalidation on the write path
// and never fails it.
func (b *Broadcaster) Publish(ctx context.Context, kind Kind, task *domain.Task, extra map[string]any) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	if !kind.Valid() {
		log.Error("refusing to publish unknown event kind",
			slog.String("kind", string(kind)),
			slog.String("task_id", task.ID.String()))
		return
	}

	event := Event{
		Kind:      kind,
		Task:      NewTaskPayload(task),
		Timestamp: time.Now().UTC(),
		Extra:     extra,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal event",
			slog.String("kind", string(kind)),
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	for _, channel := range []string{OwnerChannel(task.OwnerID), GlobalChannel} {
		if err := b.bus.Publish(ctx, channel, payload); err != nil {
			log.Warn("failed to publish event, dropping",
				slog.String("kind", string(kind)),
				slog.String("channel", channel),
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	log.Debug("published event",
		slog.String("kind", string(kind)),
		slog.String("task_id", task.ID.String()),
		slog.String("owner_id", task.OwnerID.String()))
}
