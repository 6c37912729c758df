package events

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubSinkConfig holds configuration for the Pub/Sub sink.
type PubSubSinkConfig struct {
	// Client is an initialized Pub/Sub client (required).
	Client *pubsub.Client

	// Topic is the topic name or ID events are published to (required).
	Topic string

	// Logger receives publish failures.
	Logger zerolog.Logger
}

// PubSubSink publishes events as JSON messages to a Pub/Sub topic. Publishing
// is asynchronous; failures are logged and never reported to the caller.
type PubSubSink struct {
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewPubSubSink creates a Pub/Sub backed sink.
func NewPubSubSink(cfg PubSubSinkConfig) *PubSubSink {
	return &PubSubSink{
		publisher: cfg.Client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}
}

// Emit publishes ev without waiting for the server acknowledgement.
func (s *PubSubSink) Emit(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("failed to encode event")
		return
	}

	// The request context may end before the publish completes.
	ctx = context.WithoutCancel(ctx)
	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": string(ev.Type),
			"event_id":   ev.ID,
		},
	})

	go func() {
		getCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := result.Get(getCtx); err != nil {
			s.logger.Warn().
				Err(err).
				Str("topic", s.topic).
				Str("event_id", ev.ID).
				Msg("failed to publish event")
		}
	}()
}

// Close flushes pending messages and stops the publisher.
func (s *PubSubSink) Close() {
	s.publisher.Stop()
}
