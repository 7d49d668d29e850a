package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhub/internal/domain/entity"
	"jobhub/pkg/errors"
)

func TestMessagingUseCase_RejectsSelfConversation(t *testing.T) {
	log, profiles := newDirectoryFixture("u1")
	uc := NewMessagingUseCase(log, profiles, 2)
	ctx := context.Background()

	_, err := uc.LoadConversation(ctx, "u1", "u1")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = uc.SendMessage(ctx, "u1", "u1", "hi me")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestMessagingUseCase_SendThenLoad(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2")
	uc := NewMessagingUseCase(log, profiles, 2)
	ctx := context.Background()

	sent, err := uc.SendMessage(ctx, "u1", "u2", " hello ")
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "hello", sent.Content)

	blank, err := uc.SendMessage(ctx, "u1", "u2", "  ")
	assert.NoError(t, err)
	assert.Nil(t, blank)

	view, err := uc.LoadConversation(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, contents(view.Messages))

	// One-shot calls leave no live subscriptions behind.
	assert.Equal(t, 0, log.SubscriberCount())
}

func TestMessagingUseCase_ListContactsAndProfiles(t *testing.T) {
	log, profiles := newDirectoryFixture("u1", "u2", "u3")
	log.Seed(
		&entity.Message{ID: "m1", Content: "a", SenderID: "u2", ReceiverID: "u1"},
		&entity.Message{ID: "m2", Content: "b", SenderID: "u1", ReceiverID: "u3"},
	)
	uc := NewMessagingUseCase(log, profiles, 2)
	ctx := context.Background()

	view, err := uc.ListContacts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, view.Contacts, 2)

	profile, err := uc.GetProfile(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "User u2", profile.DisplayName)

	_, err = uc.GetProfile(ctx, "")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = uc.GetProfile(ctx, "nobody")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}
