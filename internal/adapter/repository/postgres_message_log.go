package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
	"jobhub/pkg/logger"
)

// MessageInsertedChannel is the LISTEN/NOTIFY channel fed by the insert trigger.
const MessageInsertedChannel = "message_inserted"

const messageColumns = "id, content, sender_id, receiver_id, created_at, read"

// PostgresSchema creates the message log, its insert trigger and the profile table.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	content     TEXT NOT NULL CHECK (length(btrim(content)) > 0),
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	read        BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS messages_sender_receiver_idx ON messages (sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS messages_receiver_idx ON messages (receiver_id);

CREATE OR REPLACE FUNCTION notify_message_inserted() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('message_inserted', row_to_json(NEW)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS messages_notify_insert ON messages;
CREATE TRIGGER messages_notify_insert AFTER INSERT ON messages
	FOR EACH ROW EXECUTE FUNCTION notify_message_inserted();

CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	avatar_url   TEXT,
	headline     TEXT,
	role         TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresMessageLog implements MessageLog over database/sql. Insert events
// arrive through a NotificationHub fed by a pq.Listener.
type PostgresMessageLog struct {
	db  *sql.DB
	hub *NotificationHub
}

func NewPostgresMessageLog(db *sql.DB, hub *NotificationHub) *PostgresMessageLog {
	return &PostgresMessageLog{db: db, hub: hub}
}

var _ repository.MessageLog = (*PostgresMessageLog)(nil)

func (s *PostgresMessageLog) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, PostgresSchema); err != nil {
		return errors.Internal("Failed to migrate message log schema", err)
	}
	return nil
}

func (s *PostgresMessageLog) QueryConversation(ctx context.Context, a, b string) ([]*entity.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
			OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`

	messages, err := s.queryMessages(ctx, query, a, b)
	if err != nil {
		logger.Error("Postgres error while querying conversation %s<->%s: %v", a, b, err)
		return nil, errors.Query("Failed to query conversation", err)
	}
	return messages, nil
}

func (s *PostgresMessageLog) QueryInvolving(ctx context.Context, userID string) ([]*entity.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
	`

	messages, err := s.queryMessages(ctx, query, userID)
	if err != nil {
		logger.Error("Postgres error while querying messages for user %s: %v", userID, err)
		return nil, errors.Query("Failed to query messages", err)
	}
	return messages, nil
}

func (s *PostgresMessageLog) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*entity.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*entity.Message
	for rows.Next() {
		var m entity.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.SenderID, &m.ReceiverID, &m.CreatedAt, &m.Read); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *PostgresMessageLog) Insert(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	query := `
		INSERT INTO messages (content, sender_id, receiver_id, read)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + messageColumns

	var stored entity.Message
	err := s.db.QueryRowContext(ctx, query, msg.Content, msg.SenderID, msg.ReceiverID, msg.Read).
		Scan(&stored.ID, &stored.Content, &stored.SenderID, &stored.ReceiverID, &stored.CreatedAt, &stored.Read)
	if err != nil {
		logger.Error("Postgres error while inserting message from %s to %s: %v", msg.SenderID, msg.ReceiverID, err)
		return nil, errors.Write("Failed to insert message", err)
	}
	return &stored, nil
}

func (s *PostgresMessageLog) UpdateReadFlag(ctx context.Context, messageID string, read bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET read = $2 WHERE id = $1`, messageID, read)
	if err != nil {
		return errors.Write("Failed to update read flag", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Write("Failed to update read flag", err)
	}
	if affected == 0 {
		return errors.Write("Failed to update read flag", errors.NotFound("Message", nil))
	}
	return nil
}

func (s *PostgresMessageLog) SubscribeInserts(ctx context.Context, filter repository.MessageFilter, fn func(*entity.Message)) (repository.Subscription, error) {
	if s.hub == nil {
		return nil, errors.Query("Insert notifications are not configured", nil)
	}
	return s.hub.Subscribe(filter, fn), nil
}

// NewPostgresListener opens a pq.Listener on the message insert channel.
func NewPostgresListener(dsn string) (*pq.Listener, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("Postgres listener event %d: %v", event, err)
		}
	})
	if err := listener.Listen(MessageInsertedChannel); err != nil {
		listener.Close()
		return nil, err
	}
	return listener, nil
}

// NotificationHub fans NOTIFY payloads out to filtered subscriptions. Each
// subscription has its own delivery goroutine so one slow consumer does not
// stall the others.
type NotificationHub struct {
	mu   sync.RWMutex
	subs map[uint64]*hubSubscription
	next uint64
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{subs: make(map[uint64]*hubSubscription)}
}

// Run consumes notifications until ctx is done or notify is closed.
func (h *NotificationHub) Run(ctx context.Context, notify <-chan *pq.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				// pq sends nil after re-establishing a dropped connection.
				logger.Warn("Postgres listener reconnected; inserts during the outage were not delivered")
				continue
			}
			h.Dispatch(n.Extra)
		}
	}
}

func (h *NotificationHub) Dispatch(payload string) {
	var msg entity.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		logger.Warn("Dropping undecodable insert notification: %v", err)
		return
	}

	h.mu.RLock()
	var targets []*hubSubscription
	for _, sub := range h.subs {
		if sub.filter.Matches(&msg) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.enqueue(msg.Clone())
	}
}

func (h *NotificationHub) Subscribe(filter repository.MessageFilter, fn func(*entity.Message)) repository.Subscription {
	sub := &hubSubscription{
		hub:    h,
		filter: filter,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	sub.id = h.next
	h.next++
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.run()
	return sub
}

func (h *NotificationHub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type hubSubscription struct {
	id     uint64
	hub    *NotificationHub
	filter repository.MessageFilter
	fn     func(*entity.Message)

	// queue is unbounded so Dispatch never waits on a slow callback.
	queueMu sync.Mutex
	queue   []*entity.Message
	wake    chan struct{}

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *hubSubscription) enqueue(m *entity.Message) {
	s.queueMu.Lock()
	s.queue = append(s.queue, m)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *hubSubscription) drain() []*entity.Message {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	batch := s.queue
	s.queue = nil
	return batch
}

func (s *hubSubscription) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
			for _, m := range s.drain() {
				select {
				case <-s.quit:
					return
				default:
				}
				s.fn(m)
			}
		}
	}
}

func (s *hubSubscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s.id)
		close(s.quit)
	})
	<-s.done
}
