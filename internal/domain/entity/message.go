package entity

import "time"

// Message is a single direct message between two users. Everything except
// Read is fixed once the log has assigned ID and CreatedAt.
type Message struct {
	ID         string    `json:"id" firestore:"id"`
	Content    string    `json:"content" firestore:"content"`
	SenderID   string    `json:"sender_id" firestore:"senderId"`
	ReceiverID string    `json:"receiver_id" firestore:"receiverId"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt"`
	Read       bool      `json:"read" firestore:"read"`
}

// BelongsTo reports whether m is part of the conversation between a and b.
func (m *Message) BelongsTo(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Involves reports whether userID is the sender or the receiver of m.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the participant of m that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

func (m *Message) Clone() *Message {
	c := *m
	return &c
}
