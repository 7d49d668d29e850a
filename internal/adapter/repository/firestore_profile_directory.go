package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
)

type firestoreProfileDirectory struct {
	client *firestore.Client
}

func NewFirestoreProfileDirectory(client *firestore.Client) repository.ProfileDirectory {
	return &firestoreProfileDirectory{
		client: client,
	}
}

func (r *firestoreProfileDirectory) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	doc, err := r.client.Collection("users").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Profile", err)
		}
		return nil, errors.Internal("Failed to get profile", err)
	}

	var profile entity.Profile
	if err := doc.DataTo(&profile); err != nil {
		return nil, errors.Internal("Failed to parse profile data", err)
	}
	if profile.ID == "" {
		profile.ID = doc.Ref.ID
	}

	return &profile, nil
}
