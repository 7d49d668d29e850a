package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "jobhub/internal/adapter/repository"
	"jobhub/internal/domain/entity"
	"jobhub/pkg/errors"
)

func newDirectoryFixture(profiles ...string) (*faultyLog, *adapter.MemoryProfileDirectory) {
	directory := adapter.NewMemoryProfileDirectory()
	for _, id := range profiles {
		directory.Put(&entity.Profile{ID: id, DisplayName: "User " + id, Role: entity.RoleFreelancer})
	}
	return newFaultyLog(), directory
}

func TestDerivePeerIDs(t *testing.T) {
	messages := []*entity.Message{
		{ID: "1", SenderID: "A", ReceiverID: "B"},
		{ID: "2", SenderID: "B", ReceiverID: "A"},
		{ID: "3", SenderID: "A", ReceiverID: "C"},
		{ID: "4", SenderID: "B", ReceiverID: "C"},
	}

	assert.Equal(t, []string{"B", "C"}, DerivePeerIDs("A", messages))
	assert.Empty(t, DerivePeerIDs("Z", messages))
	assert.Empty(t, DerivePeerIDs("A", nil))
}

func TestContactDirectory_RefreshYieldsEachPeerOnce(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2", "u3")
	log.Seed(
		&entity.Message{ID: "m1", Content: "a", SenderID: "u1", ReceiverID: "u2"},
		&entity.Message{ID: "m2", Content: "b", SenderID: "u2", ReceiverID: "u1"},
		&entity.Message{ID: "m3", Content: "c", SenderID: "u3", ReceiverID: "u1"},
		&entity.Message{ID: "m4", Content: "d", SenderID: "u1", ReceiverID: "u3"},
	)

	directory := NewContactDirectory(log, profiles, 2)
	require.NoError(t, directory.Refresh(context.Background(), "u1"))

	view := directory.Snapshot()
	assert.Equal(t, []string{"u2", "u3"}, profileIDs(view.Contacts))
	assert.False(t, view.Loading)
	assert.NoError(t, view.Err)
}

func TestContactDirectory_UnresolvableProfilesAreOmitted(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2")
	log.Seed(
		&entity.Message{ID: "m1", Content: "a", SenderID: "u1", ReceiverID: "u2"},
		&entity.Message{ID: "m2", Content: "b", SenderID: "ghost", ReceiverID: "u1"},
	)

	directory := NewContactDirectory(log, profiles, 0)
	require.NoError(t, directory.Refresh(context.Background(), "u1"))

	view := directory.Snapshot()
	assert.Equal(t, []string{"u2"}, profileIDs(view.Contacts))
	assert.NoError(t, view.Err)
}

func TestContactDirectory_QueryErrorKeepsPreviousList(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2")
	log.Seed(&entity.Message{ID: "m1", Content: "a", SenderID: "u1", ReceiverID: "u2"})
	ctx := context.Background()

	directory := NewContactDirectory(log, profiles, 4)
	require.NoError(t, directory.Refresh(ctx, "u1"))

	log.failQueries(errors.Query("Failed to query messages", assert.AnError))
	err := directory.Refresh(ctx, "u1")
	assert.True(t, errors.Is(err, errors.CodeQuery))

	view := directory.Snapshot()
	assert.Equal(t, []string{"u2"}, profileIDs(view.Contacts))
	assert.True(t, errors.Is(view.Err, errors.CodeQuery))
}

func TestContactDirectory_ActivateFollowsInserts(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2", "u3", "u4")
	log.Seed(&entity.Message{ID: "m1", Content: "a", SenderID: "u1", ReceiverID: "u2"})
	ctx := context.Background()

	directory := NewContactDirectory(log, profiles, 4)
	require.NoError(t, directory.Activate(ctx, "u1"))
	assert.Equal(t, []string{"u2"}, profileIDs(directory.Snapshot().Contacts))
	assert.Equal(t, 1, log.SubscriberCount())

	_, err := log.Insert(ctx, &entity.Message{Content: "new lead", SenderID: "u4", ReceiverID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u4"}, profileIDs(directory.Snapshot().Contacts))

	// Unrelated traffic does not touch the list.
	_, err = log.Insert(ctx, &entity.Message{Content: "elsewhere", SenderID: "u2", ReceiverID: "u3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u4"}, profileIDs(directory.Snapshot().Contacts))

	directory.Close()
	assert.Equal(t, 0, log.SubscriberCount())
	assert.Empty(t, directory.Snapshot().Contacts)
}

func TestContactDirectory_ReactivateSwitchesUser(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2", "u3")
	log.Seed(
		&entity.Message{ID: "m1", Content: "a", SenderID: "u1", ReceiverID: "u2"},
		&entity.Message{ID: "m2", Content: "b", SenderID: "u3", ReceiverID: "u2"},
	)
	ctx := context.Background()

	directory := NewContactDirectory(log, profiles, 4)
	defer directory.Close()

	require.NoError(t, directory.Activate(ctx, "u1"))
	require.NoError(t, directory.Activate(ctx, "u2"))

	assert.Equal(t, 1, log.SubscriberCount())
	view := directory.Snapshot()
	assert.Equal(t, "u2", view.SelfID)
	assert.Equal(t, []string{"u1", "u3"}, profileIDs(view.Contacts))
}

func TestContactDirectory_StaleRefreshErrorIsDropped(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2")
	directory := NewContactDirectory(log, profiles, 4)
	defer directory.Close()

	log.failQueries(errors.Query("Failed to query messages", assert.AnError))
	held, release := log.holdQueries()

	done := make(chan error, 1)
	go func() {
		done <- directory.Refresh(context.Background(), "u1")
	}()
	select {
	case <-held:
	case <-time.After(2 * time.Second):
		t.Fatal("query never started")
	}

	// Switch users the way Activate does before its own refresh starts.
	directory.mu.Lock()
	directory.resetLocked("u2")
	directory.mu.Unlock()

	release()
	assert.Error(t, <-done)

	view := directory.Snapshot()
	assert.Equal(t, "u2", view.SelfID)
	assert.NoError(t, view.Err)
	assert.False(t, view.Loading)
}
