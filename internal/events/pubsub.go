package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher delivers events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSub creates a publisher for the named topic.
func NewPubSub(client *pubsub.Client, topic string) (*PubSubPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic name is required")
	}
	return &PubSubPublisher{topic: client.Topic(topic)}, nil
}

// Publish marshals the event to JSON and publishes it. The call blocks until
// the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": event.Type},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Stop flushes outstanding messages. Call on shutdown.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
