package repository

import (
	"context"
	"database/sql"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
)

type postgresProfileDirectory struct {
	db *sql.DB
}

func NewPostgresProfileDirectory(db *sql.DB) repository.ProfileDirectory {
	return &postgresProfileDirectory{db: db}
}

func (s *postgresProfileDirectory) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	query := `
		SELECT id, display_name, COALESCE(avatar_url, ''), COALESCE(headline, ''), role, updated_at
		FROM profiles
		WHERE id = $1
	`

	var p entity.Profile
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.DisplayName, &p.AvatarURL, &p.Headline, &p.Role, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("Profile", err)
		}
		return nil, errors.Internal("Failed to get profile", err)
	}

	return &p, nil
}
