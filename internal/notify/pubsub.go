package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
)

// PubSubNotifier publishes run reports to a Pub/Sub topic for
// downstream alerting.
type PubSubNotifier struct {
	publisher *pubsub.Publisher
}

// TopicName renders the fully qualified topic resource name.
func TopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

// NewPubSub wraps an existing topic publisher.
func NewPubSub(publisher *pubsub.Publisher) (*PubSubNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher is required")
	}
	return &PubSubNotifier{publisher: publisher}, nil
}

// Notify publishes the report as JSON and waits for the server ack.
func (p *PubSubNotifier) Notify(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	status := "failed"
	if report.AllSucceeded() {
		status = "succeeded"
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": report.RunID,
			"status": status,
		},
	}
	result := p.publisher.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}
