package repository

import (
	"context"

	"jobhub/internal/domain/entity"
)

// MessageLog is the append-only store of direct messages owned by the backend.
// Implementations report read failures as QUERY_ERROR and write failures as
// WRITE_ERROR app errors.
type MessageLog interface {
	// QueryConversation returns every message exchanged between a and b,
	// ascending by CreatedAt.
	QueryConversation(ctx context.Context, a, b string) ([]*entity.Message, error)
	// QueryInvolving returns every message sent or received by userID, in no
	// particular order.
	QueryInvolving(ctx context.Context, userID string) ([]*entity.Message, error)
	// Insert stores msg and returns the stored record with ID and CreatedAt
	// assigned by the log.
	Insert(ctx context.Context, msg *entity.Message) (*entity.Message, error)
	UpdateReadFlag(ctx context.Context, messageID string, read bool) error
	// SubscribeInserts calls fn for each message inserted after the call that
	// matches filter. Delivery is at-least-once; consumers dedup by ID.
	SubscribeInserts(ctx context.Context, filter MessageFilter, fn func(*entity.Message)) (Subscription, error)
}

// Subscription is a live insert feed. Close blocks until no further callback
// can run and is safe to call more than once.
type Subscription interface {
	Close()
}

// MessageFilter selects messages for a subscription. With Peer set it matches
// the conversation between User and Peer, otherwise any message involving User.
type MessageFilter struct {
	User string
	Peer string
}

func ConversationFilter(a, b string) MessageFilter {
	return MessageFilter{User: a, Peer: b}
}

func InvolvingFilter(userID string) MessageFilter {
	return MessageFilter{User: userID}
}

func (f MessageFilter) IsConversation() bool {
	return f.Peer != ""
}

func (f MessageFilter) Matches(m *entity.Message) bool {
	if f.IsConversation() {
		return m.BelongsTo(f.User, f.Peer)
	}
	return m.Involves(f.User)
}
