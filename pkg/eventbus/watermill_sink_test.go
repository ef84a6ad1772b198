package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/pkg/events"
)

func TestGoChannelSink_PublishAndReceive(t *testing.T) {
	sink, subscriber := NewGoChannelSink(watermill.NopLogger{})
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := subscriber.Subscribe(ctx, events.Topic)
	require.NoError(t, err)

	event := events.EvaluationStarted{
		BaseEvent: events.BaseEvent{
			ID:          "evt-1",
			Type:        events.EvaluationStartedEvent,
			Timestamp:   time.Now().UTC(),
			ExecutionID: "exec-1",
			ConfigID:    "cfg-1",
		},
		FieldCount:  3,
		OptionCount: 2,
	}

	require.NoError(t, sink.Publish(ctx, "exec-1", event))

	select {
	case msg := <-messages:
		msg.Ack()

		assert.Equal(t, "exec-1", msg.Metadata.Get(events.EventKeyMetadataKey))
		assert.Equal(t, string(events.EvaluationStartedEvent), msg.Metadata.Get(events.EventTypeMetadataKey))

		var decoded events.EvaluationStarted
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, "exec-1", decoded.ExecutionID)
		assert.Equal(t, 3, decoded.FieldCount)
	case <-ctx.Done():
		t.Fatal("no message received before timeout")
	}
}

func TestSlogSink_Publish(t *testing.T) {
	sink := NewSlogSink(nil)

	err := sink.Publish(context.Background(), "exec-1", events.EvaluationCancelled{
		BaseEvent: events.BaseEvent{Type: events.EvaluationCancelledEvent},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}
