package repository

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
	"jobhub/pkg/logger"
)

const messagesCollection = "messages"

// firestoreMessage is the stored document shape. Participants backs the
// array-contains query for "messages involving a user".
type firestoreMessage struct {
	ID           string    `firestore:"id"`
	Content      string    `firestore:"content"`
	SenderID     string    `firestore:"senderId"`
	ReceiverID   string    `firestore:"receiverId"`
	Participants []string  `firestore:"participants"`
	CreatedAt    time.Time `firestore:"createdAt,serverTimestamp"`
	Read         bool      `firestore:"read"`
}

func (d *firestoreMessage) toEntity() *entity.Message {
	return &entity.Message{
		ID:         d.ID,
		Content:    d.Content,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		CreatedAt:  d.CreatedAt,
		Read:       d.Read,
	}
}

type firestoreMessageLog struct {
	client *firestore.Client
}

func NewFirestoreMessageLog(client *firestore.Client) repository.MessageLog {
	return &firestoreMessageLog{
		client: client,
	}
}

func (r *firestoreMessageLog) collection() *firestore.CollectionRef {
	return r.client.Collection(messagesCollection)
}

func conversationQuery(coll *firestore.CollectionRef, a, b string) firestore.Query {
	return coll.WhereEntity(firestore.OrFilter{
		Filters: []firestore.EntityFilter{
			firestore.AndFilter{Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: "senderId", Operator: "==", Value: a},
				firestore.PropertyFilter{Path: "receiverId", Operator: "==", Value: b},
			}},
			firestore.AndFilter{Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: "senderId", Operator: "==", Value: b},
				firestore.PropertyFilter{Path: "receiverId", Operator: "==", Value: a},
			}},
		},
	})
}

func involvingQuery(coll *firestore.CollectionRef, userID string) firestore.Query {
	return coll.Where("participants", "array-contains", userID)
}

func (r *firestoreMessageLog) QueryConversation(ctx context.Context, a, b string) ([]*entity.Message, error) {
	query := conversationQuery(r.collection(), a, b).OrderBy("createdAt", firestore.Asc)

	messages, err := collectMessages(query.Documents(ctx))
	if err != nil {
		logger.Error("Firestore error while querying conversation %s<->%s: %v", a, b, err)
		return nil, errors.Query("Failed to query conversation", err)
	}
	return messages, nil
}

func (r *firestoreMessageLog) QueryInvolving(ctx context.Context, userID string) ([]*entity.Message, error) {
	messages, err := collectMessages(involvingQuery(r.collection(), userID).Documents(ctx))
	if err != nil {
		logger.Error("Firestore error while querying messages for user %s: %v", userID, err)
		return nil, errors.Query("Failed to query messages", err)
	}
	return messages, nil
}

func collectMessages(iter *firestore.DocumentIterator) ([]*entity.Message, error) {
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		msg, err := decodeMessage(doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var stored firestoreMessage
	if err := doc.DataTo(&stored); err != nil {
		return nil, err
	}
	if stored.ID == "" {
		stored.ID = doc.Ref.ID
	}
	return stored.toEntity(), nil
}

func (r *firestoreMessageLog) Insert(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	stored := firestoreMessage{
		ID:           uuid.New().String(),
		Content:      msg.Content,
		SenderID:     msg.SenderID,
		ReceiverID:   msg.ReceiverID,
		Participants: []string{msg.SenderID, msg.ReceiverID},
		Read:         msg.Read,
	}

	// The zero CreatedAt is replaced by the commit time, which is also the
	// write result's update time.
	result, err := r.collection().Doc(stored.ID).Create(ctx, stored)
	if err != nil {
		logger.Error("Firestore error while inserting message from %s to %s: %v", msg.SenderID, msg.ReceiverID, err)
		return nil, errors.Write("Failed to insert message", err)
	}
	stored.CreatedAt = result.UpdateTime

	return stored.toEntity(), nil
}

func (r *firestoreMessageLog) UpdateReadFlag(ctx context.Context, messageID string, read bool) error {
	_, err := r.collection().Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "read", Value: read},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.Write("Failed to update read flag", errors.NotFound("Message", err))
		}
		return errors.Write("Failed to update read flag", err)
	}
	return nil
}

func (r *firestoreMessageLog) SubscribeInserts(ctx context.Context, filter repository.MessageFilter, fn func(*entity.Message)) (repository.Subscription, error) {
	var query firestore.Query
	if filter.IsConversation() {
		query = conversationQuery(r.collection(), filter.User, filter.Peer)
	} else {
		query = involvingQuery(r.collection(), filter.User)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &firestoreSubscription{
		iter:   query.Snapshots(listenCtx),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(listenCtx, filter, fn)

	return sub, nil
}

type firestoreSubscription struct {
	iter      *firestore.QuerySnapshotIterator
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (s *firestoreSubscription) run(ctx context.Context, filter repository.MessageFilter, fn func(*entity.Message)) {
	defer close(s.done)
	defer s.iter.Stop()

	// The first snapshot is the current result set, not new inserts.
	initial := true
	for {
		snap, err := s.iter.Next()
		if err != nil {
			if err != iterator.Done && ctx.Err() == nil && status.Code(err) != codes.Canceled {
				logger.Error("Firestore listener for %+v stopped: %v", filter, err)
			}
			return
		}
		if initial {
			initial = false
			continue
		}

		for _, change := range snap.Changes {
			if change.Kind != firestore.DocumentAdded {
				continue
			}
			msg, err := decodeMessage(change.Doc)
			if err != nil {
				logger.Warn("Skipping undecodable message %s: %v", change.Doc.Ref.ID, err)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			fn(msg)
		}
	}
}

func (s *firestoreSubscription) Close() {
	// Stop must not race Next, so the listener goroutine stops the iterator
	// itself once cancellation unblocks it.
	s.closeOnce.Do(s.cancel)
	<-s.done
}
