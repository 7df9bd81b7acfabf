package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outdialhq/outdial/pkg/channels/gochannel"
	"github.com/outdialhq/outdial/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.CallDispatchRequested, 1)

	err := bus.Handle(events.CallDispatchRequestedEvent, func(_ context.Context, event interface{}) error {
		dispatch, ok := event.(*events.CallDispatchRequested)
		require.True(t, ok)
		received <- dispatch

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.CallDispatchRequested{
		BaseEvent:    events.NewBaseEvent(events.CallDispatchRequestedEvent, "camp-1"),
		QueueEntryID: "entry-1",
		LeadID:       "lead-1",
		PhoneNumber:  "+15550000001",
		Priority:     5,
	}

	require.NoError(t, bus.Publish(t.Context(), "camp-1", event))

	select {
	case dispatch := <-received:
		assert.Equal(t, "entry-1", dispatch.QueueEntryID)
		assert.Equal(t, "camp-1", dispatch.CampaignID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_ComplianceTopicRouting(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex

	var got []events.EventType

	record := func(eventType events.EventType) EventHandler {
		return func(_ context.Context, _ interface{}) error {
			mu.Lock()
			defer mu.Unlock()

			got = append(got, eventType)

			return nil
		}
	}

	require.NoError(t, bus.Handle(events.CampaignPausedEvent, record(events.CampaignPausedEvent)))
	require.NoError(t, bus.Handle(events.SMSIntentCreatedEvent, record(events.SMSIntentCreatedEvent)))
	require.NoError(t, bus.Subscribe(t.Context()))

	paused := events.CampaignPaused{
		BaseEvent: events.NewBaseEvent(events.CampaignPausedEvent, "camp-1"),
		Reason:    "abandonment rate exceeded",
	}
	sms := events.SMSIntentCreated{
		BaseEvent:   events.NewBaseEvent(events.SMSIntentCreatedEvent, "camp-1"),
		LeadID:      "lead-1",
		PhoneNumber: "+15550000001",
		Message:     "hello",
	}

	require.NoError(t, bus.Publish(t.Context(), "camp-1", paused))
	require.NoError(t, bus.Publish(t.Context(), "camp-1", sms))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, events.ComplianceTopic, topicFor(events.CampaignPausedEvent))
	assert.Equal(t, events.ComplianceTopic, topicFor(events.ViolationRecordedEvent))
	assert.Equal(t, events.IntentTopic, topicFor(events.CallDispatchRequestedEvent))
	assert.Equal(t, events.IntentTopic, topicFor(events.WorkflowStepExecutedEvent))
}
