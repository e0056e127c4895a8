package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/jfelder/chronicle-harvester/internal/progress"
)

// PubSubSink publishes item events to a Google Cloud Pub/Sub topic so
// downstream extraction pipelines learn about newly cached payloads.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// eventMessage is the published wire form.
type eventMessage struct {
	BatchID    string    `json:"batch_id"`
	Identifier string    `json:"identifier"`
	Outcome    string    `json:"outcome"`
	Attempts   int       `json:"attempts"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// NewPubSubSink connects to the project and binds the topic.
func NewPubSubSink(ctx context.Context, projectID, topicName string) (*PubSubSink, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSubSink{
		client: client,
		topic:  client.Topic(topicName),
	}, nil
}

// Consume publishes each event as a JSON message. Publish results are
// awaited so sink errors surface to the hub instead of vanishing into the
// client's buffer.
func (s *PubSubSink) Consume(ctx context.Context, batch []progress.Event) error {
	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, evt := range batch {
		data, err := json.Marshal(eventMessage{
			BatchID:    evt.BatchUUID().String(),
			Identifier: evt.Identifier,
			Outcome:    string(evt.Outcome),
			Attempts:   evt.Attempts,
			Bytes:      evt.Bytes,
			DurationMS: evt.Dur.Milliseconds(),
			At:         evt.TS,
		})
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		results = append(results, s.topic.Publish(ctx, &pubsub.Message{Data: data}))
	}
	for _, res := range results {
		if _, err := res.Get(ctx); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}
	return nil
}

// Close stops the topic's publish goroutines and closes the client.
func (s *PubSubSink) Close(context.Context) error {
	s.topic.Stop()
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
