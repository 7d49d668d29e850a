package repository

import (
	"context"

	"jobhub/internal/domain/entity"
)

type ProfileDirectory interface {
	// GetProfile returns a NOT_FOUND app error when no profile exists for id.
	GetProfile(ctx context.Context, id string) (*entity.Profile, error)
}
