package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, msg outgoingMessage) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// outgoingMessage is a job body plus the keys FIFO queues need to keep one
// user's turns in order.
type outgoingMessage struct {
	Body            string
	GroupID         string
	DeduplicationID string
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeMessage jobType = "message"
)

type queuePayload struct {
	ID          string         `json:"id"`
	Kind        jobType        `json:"kind"`
	Message     MessageRequest `json:"message"`
	TrackStatus bool           `json:"track_status"`
}

// PublishOption customizes a queued job.
type PublishOption func(*queuePayload)

// WithoutJobTracking disables job status persistence for fire-and-forget work
// such as webhook deliveries.
func WithoutJobTracking() PublishOption {
	return func(p *queuePayload) {
		p.TrackStatus = false
	}
}

func encodePayload(payload queuePayload) (queuePayload, outgoingMessage, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, outgoingMessage{}, fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	dedup := payload.Message.MessageID
	if dedup == "" {
		dedup = payload.ID
	}
	return payload, outgoingMessage{
		Body:            string(body),
		GroupID:         payload.Message.UserID,
		DeduplicationID: dedup,
	}, nil
}
