package usecase

import (
	"context"
	"strings"
	"sync"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/logger"
)

// ConversationView is a point-in-time copy of a ConversationStore's state.
type ConversationView struct {
	SelfID   string
	PeerID   string
	Messages []*entity.Message
	Loading  bool
	Err      error
}

// ConversationStore keeps the message history between the current user and
// one peer, merging an initial fetch with the live insert feed.
//
// The sequence is ordered by CreatedAt as fetched; later messages are
// appended in arrival order and never re-sorted, so an event carrying a
// skewed timestamp lands at the end.
type ConversationStore struct {
	log repository.MessageLog

	// lifecycle serializes Open and Close so at most one subscription is
	// live per store.
	lifecycle sync.Mutex

	mu         sync.Mutex
	selfID     string
	peerID     string
	messages   []*entity.Message
	ids        map[string]struct{}
	loading    bool
	err        error
	sub        repository.Subscription
	generation uint64
	loadSeq    uint64
	// pending holds events and sends that landed while a fetch was in
	// flight; they are re-applied after the fetched history replaces the
	// sequence.
	pending []*entity.Message

	notifyMu sync.Mutex
	onChange func(ConversationView)

	readWrites sync.WaitGroup
}

func NewConversationStore(log repository.MessageLog) *ConversationStore {
	return &ConversationStore{
		log: log,
		ids: make(map[string]struct{}),
	}
}

// OnChange registers fn to receive a snapshot after every state transition.
// Snapshots are delivered one at a time, so the last call always carries the
// latest state.
func (s *ConversationStore) OnChange(fn func(ConversationView)) {
	s.notifyMu.Lock()
	s.onChange = fn
	s.notifyMu.Unlock()
}

// Open binds the store to the (selfID, peerID) pair: the previous
// subscription is released, state is reset, a subscription for the pair is
// established and the history is loaded. Opening the current pair again is a
// no-op.
func (s *ConversationStore) Open(ctx context.Context, selfID, peerID string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.sub != nil && s.selfID == selfID && s.peerID == peerID {
		s.mu.Unlock()
		return nil
	}
	previous := s.resetLocked(selfID, peerID)
	gen := s.generation
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	s.notify()

	if selfID == "" || peerID == "" {
		return nil
	}

	sub, err := s.log.SubscribeInserts(ctx, repository.ConversationFilter(selfID, peerID), func(m *entity.Message) {
		s.handleInsert(gen, m)
	})
	if err != nil {
		logger.Error("ConversationStore: failed to subscribe %s<->%s: %v", selfID, peerID, err)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	return s.Load(ctx)
}

// bind sets the pair without subscribing, for one-shot request handling.
func (s *ConversationStore) bind(selfID, peerID string) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	previous := s.resetLocked(selfID, peerID)
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// Close releases the subscription and clears the view. The store can be
// opened again afterwards.
func (s *ConversationStore) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	previous := s.resetLocked("", "")
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	s.notify()
}

func (s *ConversationStore) resetLocked(selfID, peerID string) repository.Subscription {
	previous := s.sub
	s.sub = nil
	s.generation++
	s.selfID = selfID
	s.peerID = peerID
	s.messages = nil
	s.ids = make(map[string]struct{})
	s.loading = false
	s.err = nil
	s.pending = nil
	return previous
}

// Load fetches the full conversation and replaces the local sequence with
// it. On failure the error is recorded and the previous sequence is kept.
// Unread messages addressed to the current user are marked read in the
// background.
func (s *ConversationStore) Load(ctx context.Context) error {
	s.mu.Lock()
	selfID, peerID, gen := s.selfID, s.peerID, s.generation
	if selfID == "" || peerID == "" {
		s.mu.Unlock()
		return nil
	}
	s.loadSeq++
	seq := s.loadSeq
	s.loading = true
	s.pending = nil
	s.mu.Unlock()
	s.notify()

	fetched, err := s.log.QueryConversation(ctx, selfID, peerID)

	s.mu.Lock()
	if s.generation != gen || s.loadSeq != seq {
		// Superseded by a newer Open or Load.
		s.mu.Unlock()
		return err
	}
	s.loading = false
	if err != nil {
		s.err = err
		for _, m := range s.pending {
			s.appendLocked(m)
		}
		s.pending = nil
		s.mu.Unlock()
		logger.Warn("ConversationStore: load %s<->%s failed: %v", selfID, peerID, err)
		s.notify()
		return err
	}

	s.messages = make([]*entity.Message, 0, len(fetched)+len(s.pending))
	s.ids = make(map[string]struct{}, len(fetched)+len(s.pending))
	var unread []string
	for _, m := range fetched {
		if !m.BelongsTo(selfID, peerID) {
			continue
		}
		if s.appendLocked(m) && m.ReceiverID == selfID && !m.Read {
			unread = append(unread, m.ID)
		}
	}
	for _, m := range s.pending {
		s.appendLocked(m)
	}
	s.pending = nil
	s.err = nil
	s.mu.Unlock()
	s.notify()

	for _, id := range unread {
		s.markRead(id)
	}
	return nil
}

// Send writes content to the log as a new unread message from self to peer
// and appends the stored record immediately. Blank content or a missing
// identity yields (nil, nil) with no write. A failed write leaves the local
// sequence untouched.
func (s *ConversationStore) Send(ctx context.Context, content string) (*entity.Message, error) {
	content = strings.TrimSpace(content)

	s.mu.Lock()
	selfID, peerID, gen := s.selfID, s.peerID, s.generation
	s.mu.Unlock()

	if content == "" || selfID == "" || peerID == "" {
		return nil, nil
	}

	stored, err := s.log.Insert(ctx, &entity.Message{
		Content:    content,
		SenderID:   selfID,
		ReceiverID: peerID,
		Read:       false,
	})
	if err != nil {
		logger.Warn("ConversationStore: send %s->%s failed: %v", selfID, peerID, err)
		return nil, err
	}

	s.mu.Lock()
	added := false
	if s.generation == gen {
		if s.loading {
			s.pending = append(s.pending, stored.Clone())
		}
		added = s.appendLocked(stored)
	}
	s.mu.Unlock()
	if added {
		s.notify()
	}

	return stored.Clone(), nil
}

func (s *ConversationStore) handleInsert(gen uint64, m *entity.Message) {
	s.mu.Lock()
	if s.generation != gen || !m.BelongsTo(s.selfID, s.peerID) {
		s.mu.Unlock()
		return
	}
	added := false
	if s.loading {
		// Held back until the fetched history replaces the sequence.
		s.pending = append(s.pending, m.Clone())
	} else {
		added = s.appendLocked(m)
	}
	markRead := m.ReceiverID == s.selfID && !m.Read
	s.mu.Unlock()

	if added {
		s.notify()
	}
	if markRead {
		s.markRead(m.ID)
	}
}

// appendLocked is the single insertion path for fetched, sent and streamed
// messages. It reports whether m was new.
func (s *ConversationStore) appendLocked(m *entity.Message) bool {
	if _, exists := s.ids[m.ID]; exists {
		return false
	}
	s.ids[m.ID] = struct{}{}
	s.messages = append(s.messages, m.Clone())
	return true
}

// markRead is fire-and-forget: failures are logged, never retried or surfaced.
func (s *ConversationStore) markRead(messageID string) {
	s.readWrites.Add(1)
	go func() {
		defer s.readWrites.Done()
		if err := s.log.UpdateReadFlag(context.Background(), messageID, true); err != nil {
			logger.LogBestEffortFailure("mark_read", messageID, err)
		}
	}()
}

// WaitForReadReceipts blocks until in-flight mark-as-read writes settle.
func (s *ConversationStore) WaitForReadReceipts() {
	s.readWrites.Wait()
}

func (s *ConversationStore) Snapshot() ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]*entity.Message, len(s.messages))
	for i, m := range s.messages {
		messages[i] = m.Clone()
	}
	return ConversationView{
		SelfID:   s.selfID,
		PeerID:   s.peerID,
		Messages: messages,
		Loading:  s.loading,
		Err:      s.err,
	}
}

func (s *ConversationStore) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}
