package conversation

import (
	"context"
	"time"
)

// Service describes how the conversation engine should behave.
type Service interface {
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
}

// Channel identifies which transport the conversation is happening on.
type Channel string

const (
	ChannelUnknown  Channel = ""
	ChannelWhatsApp Channel = "whatsapp"
	ChannelAPI      Channel = "api"
)

// Branch names the routing decision taken for a turn.
type Branch string

const (
	BranchOnboarding     Branch = "onboarding"
	BranchSlotFilling    Branch = "slot_filling"
	BranchPagination     Branch = "pagination"
	BranchRecommendation Branch = "recommendation"
	BranchEvents         Branch = "events"
	BranchMoreInfo       Branch = "more_info"
	BranchGeneralChat    Branch = "general_chat"
	BranchFallback       Branch = "fallback"
)

// MessageRequest represents a single inbound user message.
type MessageRequest struct {
	UserID    string            `json:"user_id" dynamodbav:"userId"`
	Message   string            `json:"message" dynamodbav:"message"`
	Channel   Channel           `json:"channel,omitempty" dynamodbav:"channel,omitempty"`
	MessageID string            `json:"message_id,omitempty" dynamodbav:"messageId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// Response is the outcome of one turn.
type Response struct {
	UserID    string    `json:"user_id" dynamodbav:"userId"`
	Message   string    `json:"message" dynamodbav:"message"`
	Branch    Branch    `json:"branch" dynamodbav:"branch"`
	Venues    []string  `json:"venues,omitempty" dynamodbav:"venues,omitempty"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}
