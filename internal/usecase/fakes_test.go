package usecase

import (
	"context"
	"sync"

	adapter "jobhub/internal/adapter/repository"
	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
)

// faultyLog wraps the in-memory log with switchable failures.
type faultyLog struct {
	*adapter.MemoryMessageLog

	mu        sync.Mutex
	queryErr  error
	insertErr error
	updateErr error
	updates   int

	// hold, when set, parks every query after it has read the log.
	hold  chan struct{}
	held  chan struct{}
	muted bool
}

type nopSubscription struct{}

func (nopSubscription) Close() {}

func newFaultyLog() *faultyLog {
	return &faultyLog{MemoryMessageLog: adapter.NewMemoryMessageLog()}
}

func (f *faultyLog) failQueries(err error) {
	f.mu.Lock()
	f.queryErr = err
	f.mu.Unlock()
}

func (f *faultyLog) failInserts(err error) {
	f.mu.Lock()
	f.insertErr = err
	f.mu.Unlock()
}

func (f *faultyLog) failUpdates(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}

// holdQueries parks queries once their result is taken. The returned channel
// receives a value per parked query; release lets them all return.
func (f *faultyLog) holdQueries() (<-chan struct{}, func()) {
	hold := make(chan struct{})
	held := make(chan struct{}, 8)

	f.mu.Lock()
	f.hold = hold
	f.held = held
	f.mu.Unlock()

	return held, func() {
		f.mu.Lock()
		f.hold = nil
		f.mu.Unlock()
		close(hold)
	}
}

// muteFeed makes new subscriptions receive nothing.
func (f *faultyLog) muteFeed() {
	f.mu.Lock()
	f.muted = true
	f.mu.Unlock()
}

func (f *faultyLog) park() {
	f.mu.Lock()
	hold, held := f.hold, f.held
	f.mu.Unlock()
	if hold == nil {
		return
	}
	held <- struct{}{}
	<-hold
}

func (f *faultyLog) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *faultyLog) QueryConversation(ctx context.Context, a, b string) ([]*entity.Message, error) {
	f.mu.Lock()
	err := f.queryErr
	f.mu.Unlock()
	if err != nil {
		f.park()
		return nil, err
	}
	messages, err := f.MemoryMessageLog.QueryConversation(ctx, a, b)
	f.park()
	return messages, err
}

func (f *faultyLog) QueryInvolving(ctx context.Context, userID string) ([]*entity.Message, error) {
	f.mu.Lock()
	err := f.queryErr
	f.mu.Unlock()
	if err != nil {
		f.park()
		return nil, err
	}
	messages, err := f.MemoryMessageLog.QueryInvolving(ctx, userID)
	f.park()
	return messages, err
}

func (f *faultyLog) SubscribeInserts(ctx context.Context, filter repository.MessageFilter, fn func(*entity.Message)) (repository.Subscription, error) {
	f.mu.Lock()
	muted := f.muted
	f.mu.Unlock()
	if muted {
		return nopSubscription{}, nil
	}
	return f.MemoryMessageLog.SubscribeInserts(ctx, filter, fn)
}

func (f *faultyLog) Insert(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	f.mu.Lock()
	err := f.insertErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryMessageLog.Insert(ctx, msg)
}

func (f *faultyLog) UpdateReadFlag(ctx context.Context, messageID string, read bool) error {
	f.mu.Lock()
	f.updates++
	err := f.updateErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryMessageLog.UpdateReadFlag(ctx, messageID, read)
}

func contents(messages []*entity.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func profileIDs(profiles []*entity.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ID)
	}
	return out
}
