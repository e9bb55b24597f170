package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/events"
)

func TestKindValid(t *testing.T) {
	for _, kind := range []events.Kind{
		events.KindCreated, events.KindUpdated, events.KindCompleted,
		events.KindDeleted, events.KindRestored, events.KindParentUpdated,
		events.KindSubtaskUpdated, events.KindUserStatsUpdated,
	} {
		assert.True(t, kind.Valid(), "kind %s", kind)
	}
	assert.False(t, events.Kind("renamed").Valid())
}

func TestOwnerChannel(t *testing.T) {
	ownerID := uuid.New()
	assert.Equal(t, "user_task_events:"+ownerID.String(), events.OwnerChannel(ownerID))
	assert.Equal(t, "global_task_events", events.GlobalChannel)
}

func TestTaskPayloadIsLocaleIndependent(t *testing.T) {
	task, err := domain.NewTask(uuid.New(),
		domain.LocaleText{"en": "Plan", "fr": "Planifier"},
		domain.LocaleText{"en": "Launch details"})
	require.NoError(t, err)

	payload := events.NewTaskPayload(task)
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	// The frame must never carry locale-resolved text; resolution happens
	// at egress against the viewer's locale.
	assert.NotContains(t, string(raw), "Plan")
	assert.NotContains(t, string(raw), "Planifier")
	assert.Contains(t, string(raw), task.ID.String())
	assert.Contains(t, string(raw), task.OwnerID.String())
}

func TestEventJSONRoundTrip(t *testing.T) {
	task, err := domain.NewTask(uuid.New(), domain.LocaleText{"en": "Plan"}, nil)
	require.NoError(t, err)

	subtaskID := uuid.New()
	event := events.Event{
		Kind:      events.KindSubtaskUpdated,
		Task:      events.NewTaskPayload(task),
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Extra:     map[string]any{"subtask_id": subtaskID.String()},
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	// Extras are flattened to the top level next to the fixed fields.
	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "subtask_updated", flat["event"])
	assert.Equal(t, subtaskID.String(), flat["subtask_id"])
	assert.Contains(t, flat, "task")
	assert.Contains(t, flat, "timestamp")

	var decoded events.Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, event.Kind, decoded.Kind)
	assert.Equal(t, event.Task.ID, decoded.Task.ID)
	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, subtaskID.String(), decoded.Extra["subtask_id"])
}

func TestEventFixedFieldsWinOverExtras(t *testing.T) {
	task, err := domain.NewTask(uuid.New(), domain.LocaleText{"en": "Plan"}, nil)
	require.NoError(t, err)

	event := events.Event{
		Kind:      events.KindCreated,
		Task:      events.NewTaskPayload(task),
		Timestamp: time.Now().UTC(),
		Extra:     map[string]any{"event": "spoofed"},
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "created", flat["event"])
}
