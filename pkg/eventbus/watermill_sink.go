package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/rulekit/rulekit/pkg/events"
)

// WatermillSink publishes events as JSON messages on a Watermill publisher.
// Hosts that already run a message router can hand the engine their own
// publisher; NewGoChannelSink covers the in-process case.
type WatermillSink struct {
	publisher message.Publisher
}

// NewWatermillSink wraps an existing publisher.
func NewWatermillSink(pub message.Publisher) *WatermillSink {
	return &WatermillSink{publisher: pub}
}

// NewGoChannelSink creates an in-process pub/sub pair: the sink for the
// engine and the subscriber for the host to consume from. The buffer keeps
// publishes from blocking the evaluation path.
func NewGoChannelSink(logger watermill.LoggerAdapter) (*WatermillSink, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return &WatermillSink{publisher: pubSub}, pubSub
}

func (s *WatermillSink) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventKeyMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return s.publisher.Publish(events.Topic, msg)
}

func (s *WatermillSink) Close() error {
	return s.publisher.Close()
}
