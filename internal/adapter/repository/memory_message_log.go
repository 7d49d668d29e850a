package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
)

// MemoryMessageLog is an in-process message log used for local development
// and tests. Insert events are delivered synchronously, after the log lock is
// released, on the inserting goroutine.
type MemoryMessageLog struct {
	mu       sync.RWMutex
	messages []*entity.Message
	byID     map[string]*entity.Message
	subs     map[uint64]*memorySubscription
	nextSub  uint64
	lastTime time.Time
	now      func() time.Time
}

func NewMemoryMessageLog() *MemoryMessageLog {
	return &MemoryMessageLog{
		byID: make(map[string]*entity.Message),
		subs: make(map[uint64]*memorySubscription),
		now:  time.Now,
	}
}

var _ repository.MessageLog = (*MemoryMessageLog)(nil)

// Seed appends existing records as-is without notifying subscribers.
func (l *MemoryMessageLog) Seed(msgs ...*entity.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range msgs {
		stored := m.Clone()
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = l.nextTimestamp()
		} else if stored.CreatedAt.After(l.lastTime) {
			l.lastTime = stored.CreatedAt
		}
		l.messages = append(l.messages, stored)
		l.byID[stored.ID] = stored
	}
}

func (l *MemoryMessageLog) QueryConversation(ctx context.Context, a, b string) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Query("Failed to query conversation", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*entity.Message
	for _, m := range l.messages {
		if m.BelongsTo(a, b) {
			result = append(result, m.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (l *MemoryMessageLog) QueryInvolving(ctx context.Context, userID string) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Query("Failed to query messages", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*entity.Message
	for _, m := range l.messages {
		if m.Involves(userID) {
			result = append(result, m.Clone())
		}
	}
	return result, nil
}

func (l *MemoryMessageLog) Insert(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Write("Failed to insert message", err)
	}

	l.mu.Lock()
	stored := msg.Clone()
	stored.ID = uuid.New().String()
	stored.CreatedAt = l.nextTimestamp()
	l.messages = append(l.messages, stored)
	l.byID[stored.ID] = stored

	var targets []*memorySubscription
	for _, sub := range l.subs {
		if sub.filter.Matches(stored) {
			targets = append(targets, sub)
		}
	}
	event := stored.Clone()
	l.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(event.Clone())
	}

	return event, nil
}

func (l *MemoryMessageLog) UpdateReadFlag(ctx context.Context, messageID string, read bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Write("Failed to update read flag", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.byID[messageID]
	if !ok {
		return errors.Write("Failed to update read flag", errors.NotFound("Message", nil))
	}
	m.Read = read
	return nil
}

func (l *MemoryMessageLog) SubscribeInserts(ctx context.Context, filter repository.MessageFilter, fn func(*entity.Message)) (repository.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Query("Failed to subscribe to inserts", err)
	}

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	sub := &memorySubscription{id: id, log: l, filter: filter, fn: fn}
	l.subs[id] = sub
	l.mu.Unlock()

	return sub, nil
}

// SubscriberCount reports how many subscriptions are currently open.
func (l *MemoryMessageLog) SubscriberCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Get returns a copy of the stored record.
func (l *MemoryMessageLog) Get(messageID string) (*entity.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byID[messageID]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// nextTimestamp keeps CreatedAt strictly increasing in insertion order.
func (l *MemoryMessageLog) nextTimestamp() time.Time {
	ts := l.now().UTC()
	if !ts.After(l.lastTime) {
		ts = l.lastTime.Add(time.Microsecond)
	}
	l.lastTime = ts
	return ts
}

type memorySubscription struct {
	id     uint64
	log    *MemoryMessageLog
	filter repository.MessageFilter
	fn     func(*entity.Message)

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) deliver(m *entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(m)
}

func (s *memorySubscription) Close() {
	s.log.mu.Lock()
	delete(s.log.subs, s.id)
	s.log.mu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
