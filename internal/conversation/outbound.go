package conversation

import "context"

// ReplyMessenger delivers replies back to the end user (e.g. via WhatsApp).
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries the data required to push a message to the user.
type OutboundReply struct {
	UserID   string
	Channel  Channel
	Body     string
	Metadata map[string]string
}
