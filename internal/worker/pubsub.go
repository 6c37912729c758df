package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/geo"
)

// ErrMalformedJob marks a message that can never be processed. Such
// messages are acked so they are not redelivered.
var ErrMalformedJob = errors.New("malformed job")

// healthCheckPoint is fetched by health_check jobs.
var healthCheckPoint = geo.Point{Lat: 52.3676, Lon: 4.9041}

// Processor executes decoded jobs. It has no Pub/Sub dependency so it can be
// driven directly.
type Processor struct {
	prefetch *PrefetchJob
	location *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

// ProcessorConfig holds configuration for a Processor.
type ProcessorConfig struct {
	Prefetch *PrefetchJob
	// Location interprets job targets without an offset. Default: UTC.
	Location *time.Location
	Logger   zerolog.Logger
}

// NewProcessor creates a new job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Processor{
		prefetch: cfg.Prefetch,
		location: loc,
		now:      time.Now,
		logger:   cfg.Logger,
	}
}

// Process decodes and runs one message body. A nil error means the message
// should be acked; unknown job types are acked without running anything.
// Errors wrapping ErrMalformedJob should also be acked.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}

	switch job.JobType {
	case JobPrefetch:
		return p.handlePrefetch(ctx, job)
	case JobHealthCheck:
		return p.handleHealthCheck(ctx)
	default:
		p.logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		return nil
	}
}

func (p *Processor) handlePrefetch(ctx context.Context, job Job) error {
	target, err := forecast.ParseTarget(job.Target, p.location)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if len(job.Routes) == 0 {
		return fmt.Errorf("%w: no routes", ErrMalformedJob)
	}

	result := p.prefetch.Run(ctx, job.Routes, target, job.IntervalKm)
	if result.failedOver(p.prefetch.config.MaxFailureRatio) {
		return fmt.Errorf("too many prefetch failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (p *Processor) handleHealthCheck(ctx context.Context) error {
	p.logger.Debug().Msg("running health check")

	day := p.now().In(p.location).Format(time.DateOnly)
	target, err := forecast.ParseTarget(day, p.location)
	if err != nil {
		return err
	}

	result := p.prefetch.fetchAll(ctx, []geo.Point{healthCheckPoint}, target, 0)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler receives prefetch jobs from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.processor.Process(logger.WithContext(ctx), msg.Data)
	switch {
	case errors.Is(err, ErrMalformedJob):
		logger.Error().Err(err).Msg("dropping malformed job")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().
			Dur("duration", time.Since(startTime)).
			Msg("job completed")
		msg.Ack()
	}
}
