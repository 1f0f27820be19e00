package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/premium"
)

// ErrMalformedMessage marks messages that can never succeed; they are
// acknowledged so Pub/Sub does not redeliver them.
var ErrMalformedMessage = errors.New("malformed message")

// ErrBatchIncomplete is returned when a batch had failures a redelivery
// could fix.
var ErrBatchIncomplete = errors.New("batch incomplete")

// JobMessage is the body of every worker message.
type JobMessage struct {
	JobType  string                 `json:"job_type"`
	BatchID  string                 `json:"batch_id,omitempty"`
	Profiles []premium.ProfileInput `json:"profiles,omitempty"`
}

// Processor interprets message bodies and runs the matching job.
type Processor struct {
	batchJob *BatchJob
	logger   zerolog.Logger
}

// NewProcessor creates a new message processor.
func NewProcessor(batchJob *BatchJob, logger zerolog.Logger) *Processor {
	return &Processor{batchJob: batchJob, logger: logger}
}

// Process handles one message body. Errors wrapping ErrMalformedMessage
// are permanent; any other error asks for redelivery.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobTypeQuoteBatch:
		return p.handleQuoteBatch(ctx, msg)
	case JobTypeHealthCheck:
		return p.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrMalformedMessage, msg.JobType)
	}
}

func (p *Processor) handleQuoteBatch(ctx context.Context, msg JobMessage) error {
	switch {
	case msg.BatchID == "":
		return fmt.Errorf("%w: batch_id is required", ErrMalformedMessage)
	case len(msg.Profiles) == 0:
		return fmt.Errorf("%w: batch %s has no profiles", ErrMalformedMessage, msg.BatchID)
	case len(msg.Profiles) > p.batchJob.MaxProfiles():
		return fmt.Errorf("%w: batch %s has %d profiles, limit %d",
			ErrMalformedMessage, msg.BatchID, len(msg.Profiles), p.batchJob.MaxProfiles())
	}

	result := p.batchJob.Run(ctx, msg.BatchID, msg.Profiles)
	if result.Retryable() {
		return fmt.Errorf("%w: %s: %d of %d profiles failed", ErrBatchIncomplete, msg.BatchID, result.Failed, result.Total)
	}
	return nil
}

// handleHealthCheck scores the default profile to prove the artifacts load.
func (p *Processor) handleHealthCheck(ctx context.Context) error {
	p.logger.Debug().Msg("running health check")

	result := p.batchJob.Run(ctx, "health-check", []premium.ProfileInput{{}})
	if result.Quoted != 1 {
		return fmt.Errorf("health check failed: %s", result.Items[0].Error)
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
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

	// MaxOutstandingMessages bounds concurrent batches.
	// Default: 10
	MaxOutstandingMessages int

	Logger zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	maxOutstanding := cfg.MaxOutstandingMessages
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
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

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().
			Dur("duration", time.Since(startTime)).
			Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrMalformedMessage):
		logger.Error().Err(err).Msg("dropping malformed message")
		msg.Ack() // Redelivery cannot fix it
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}
