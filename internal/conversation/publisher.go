package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// Publisher enqueues conversation jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueMessage publishes a ProcessMessage job. Jobs are tracked in the job
// store unless WithoutJobTracking is passed.
func (p *Publisher) EnqueueMessage(ctx context.Context, jobID string, req MessageRequest, opts ...PublishOption) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload := queuePayload{
		ID:          jobID,
		Kind:        jobTypeMessage,
		Message:     req,
		TrackStatus: true,
	}
	for _, opt := range opts {
		opt(&payload)
	}

	payload, msg, err := encodePayload(payload)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued", "job_id", payload.ID, "user_id", req.UserID, "channel", req.Channel)
	return nil
}
