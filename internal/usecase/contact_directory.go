package usecase

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
	"jobhub/pkg/logger"
)

const defaultLookupConcurrency = 8

type ContactsView struct {
	SelfID   string
	Contacts []*entity.Profile
	Loading  bool
	Err      error
}

// ContactDirectory derives the people the current user has exchanged
// messages with. Every refresh rescans the whole log for the user; nothing
// is patched incrementally, which is fine for contact lists but costs one
// full scan per insert.
type ContactDirectory struct {
	log         repository.MessageLog
	profiles    repository.ProfileDirectory
	concurrency int

	lifecycle sync.Mutex

	mu         sync.Mutex
	selfID     string
	contacts   []*entity.Profile
	loading    bool
	err        error
	sub        repository.Subscription
	generation uint64
	refreshSeq uint64
	cancel     context.CancelFunc

	notifyMu sync.Mutex
	onChange func(ContactsView)
}

func NewContactDirectory(log repository.MessageLog, profiles repository.ProfileDirectory, concurrency int) *ContactDirectory {
	if concurrency <= 0 {
		concurrency = defaultLookupConcurrency
	}
	return &ContactDirectory{
		log:         log,
		profiles:    profiles,
		concurrency: concurrency,
	}
}

func (d *ContactDirectory) OnChange(fn func(ContactsView)) {
	d.notifyMu.Lock()
	d.onChange = fn
	d.notifyMu.Unlock()
}

// Activate refreshes once for selfID and then again on every insert that
// involves selfID, until Close or another Activate.
func (d *ContactDirectory) Activate(ctx context.Context, selfID string) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	if d.sub != nil && d.selfID == selfID {
		d.mu.Unlock()
		return nil
	}
	previous, previousCancel := d.resetLocked(selfID)
	gen := d.generation
	eventCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.mu.Unlock()

	if previousCancel != nil {
		previousCancel()
	}
	if previous != nil {
		previous.Close()
	}
	d.notify()

	if selfID == "" {
		return nil
	}

	sub, err := d.log.SubscribeInserts(ctx, repository.InvolvingFilter(selfID), func(m *entity.Message) {
		d.handleInsert(eventCtx, gen, m)
	})
	if err != nil {
		logger.Error("ContactDirectory: failed to subscribe for %s: %v", selfID, err)
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		d.notify()
		return err
	}

	d.mu.Lock()
	d.sub = sub
	d.mu.Unlock()

	return d.Refresh(ctx, selfID)
}

func (d *ContactDirectory) Close() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	previous, previousCancel := d.resetLocked("")
	d.mu.Unlock()

	if previousCancel != nil {
		previousCancel()
	}
	if previous != nil {
		previous.Close()
	}
	d.notify()
}

func (d *ContactDirectory) resetLocked(selfID string) (repository.Subscription, context.CancelFunc) {
	previous, previousCancel := d.sub, d.cancel
	d.sub = nil
	d.cancel = nil
	d.generation++
	d.selfID = selfID
	d.contacts = nil
	d.loading = false
	d.err = nil
	return previous, previousCancel
}

func (d *ContactDirectory) handleInsert(ctx context.Context, gen uint64, m *entity.Message) {
	d.mu.Lock()
	selfID := d.selfID
	current := d.generation == gen && m.Involves(selfID)
	d.mu.Unlock()
	if !current {
		return
	}

	if err := d.Refresh(ctx, selfID); err != nil && ctx.Err() == nil {
		logger.Warn("ContactDirectory: refresh after insert %s failed: %v", m.ID, err)
	}
}

// Refresh rebuilds the contact list for selfID from the message log. A
// failed log query keeps the previous list and records the error; profiles
// that cannot be resolved are left out.
func (d *ContactDirectory) Refresh(ctx context.Context, selfID string) error {
	if selfID == "" {
		return nil
	}

	d.mu.Lock()
	if d.selfID == "" {
		d.selfID = selfID
	}
	d.refreshSeq++
	seq := d.refreshSeq
	d.loading = true
	d.mu.Unlock()
	d.notify()

	messages, err := d.log.QueryInvolving(ctx, selfID)
	if err != nil {
		d.mu.Lock()
		current := d.refreshSeq == seq && d.selfID == selfID
		if current {
			d.loading = false
			d.err = err
		}
		d.mu.Unlock()
		if current {
			d.notify()
		}
		return err
	}

	contacts := d.resolve(ctx, DerivePeerIDs(selfID, messages))

	d.mu.Lock()
	if d.refreshSeq != seq || d.selfID != selfID {
		// A newer refresh owns the published state.
		d.mu.Unlock()
		return nil
	}
	d.contacts = contacts
	d.loading = false
	d.err = nil
	d.mu.Unlock()
	d.notify()

	return nil
}

// resolve looks up every peer concurrently and returns the profiles that
// resolved, in peerIDs order.
func (d *ContactDirectory) resolve(ctx context.Context, peerIDs []string) []*entity.Profile {
	resolved := make([]*entity.Profile, len(peerIDs))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, peerID := range peerIDs {
		g.Go(func() error {
			profile, err := d.profiles.GetProfile(ctx, peerID)
			if err != nil || profile == nil {
				logger.Warn("ContactDirectory: %v", errors.Resolution(peerID, err))
				return nil
			}
			resolved[i] = profile
			return nil
		})
	}
	g.Wait()

	contacts := make([]*entity.Profile, 0, len(resolved))
	for _, p := range resolved {
		if p != nil {
			contacts = append(contacts, p)
		}
	}
	return contacts
}

// DerivePeerIDs returns the distinct counterparts of selfID across messages,
// sorted. Messages not involving selfID are ignored.
func DerivePeerIDs(selfID string, messages []*entity.Message) []string {
	seen := make(map[string]struct{})
	for _, m := range messages {
		if !m.Involves(selfID) {
			continue
		}
		peer := m.Counterpart(selfID)
		if peer == "" {
			continue
		}
		seen[peer] = struct{}{}
	}

	peerIDs := make([]string, 0, len(seen))
	for id := range seen {
		peerIDs = append(peerIDs, id)
	}
	sort.Strings(peerIDs)
	return peerIDs
}

func (d *ContactDirectory) Snapshot() ContactsView {
	d.mu.Lock()
	defer d.mu.Unlock()

	contacts := make([]*entity.Profile, len(d.contacts))
	for i, p := range d.contacts {
		copied := *p
		contacts[i] = &copied
	}
	return ContactsView{
		SelfID:   d.selfID,
		Contacts: contacts,
		Loading:  d.loading,
		Err:      d.err,
	}
}

func (d *ContactDirectory) notify() {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	if d.onChange != nil {
		d.onChange(d.Snapshot())
	}
}
