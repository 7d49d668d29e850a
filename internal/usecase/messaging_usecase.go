package usecase

import (
	"context"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
)

// MessagingUseCase hands out conversation stores and contact directories
// bound to the configured message log and profile directory.
type MessagingUseCase struct {
	messageLog        repository.MessageLog
	profiles          repository.ProfileDirectory
	lookupConcurrency int
}

func NewMessagingUseCase(messageLog repository.MessageLog, profiles repository.ProfileDirectory, lookupConcurrency int) *MessagingUseCase {
	return &MessagingUseCase{
		messageLog:        messageLog,
		profiles:          profiles,
		lookupConcurrency: lookupConcurrency,
	}
}

func (uc *MessagingUseCase) NewConversation() *ConversationStore {
	return NewConversationStore(uc.messageLog)
}

func (uc *MessagingUseCase) NewContactDirectory() *ContactDirectory {
	return NewContactDirectory(uc.messageLog, uc.profiles, uc.lookupConcurrency)
}

func (uc *MessagingUseCase) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	if userID == "" {
		return nil, errors.BadRequest("Profile id is required", nil)
	}
	return uc.profiles.GetProfile(ctx, userID)
}

// LoadConversation loads the history between selfID and peerID once,
// without subscribing to the live feed.
func (uc *MessagingUseCase) LoadConversation(ctx context.Context, selfID, peerID string) (ConversationView, error) {
	if selfID == peerID {
		return ConversationView{}, errors.BadRequest("You cannot open a conversation with yourself", nil)
	}

	store := uc.NewConversation()
	store.bind(selfID, peerID)
	err := store.Load(ctx)
	return store.Snapshot(), err
}

// SendMessage writes one message from selfID to peerID without keeping any
// view state. A nil message with a nil error means the content was blank.
func (uc *MessagingUseCase) SendMessage(ctx context.Context, selfID, peerID, content string) (*entity.Message, error) {
	if selfID == peerID {
		return nil, errors.BadRequest("You cannot message yourself", nil)
	}

	store := uc.NewConversation()
	defer store.Close()

	store.bind(selfID, peerID)
	return store.Send(ctx, content)
}

// ListContacts runs one contact derivation pass for selfID.
func (uc *MessagingUseCase) ListContacts(ctx context.Context, selfID string) (ContactsView, error) {
	directory := uc.NewContactDirectory()
	err := directory.Refresh(ctx, selfID)
	return directory.Snapshot(), err
}
