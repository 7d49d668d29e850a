package repository

import (
	"context"
	"sync"
	"time"

	"jobhub/internal/domain/entity"
	"jobhub/internal/domain/repository"
	"jobhub/pkg/errors"
)

type MemoryProfileDirectory struct {
	mu       sync.RWMutex
	profiles map[string]*entity.Profile
}

func NewMemoryProfileDirectory(profiles ...*entity.Profile) *MemoryProfileDirectory {
	d := &MemoryProfileDirectory{profiles: make(map[string]*entity.Profile)}
	for _, p := range profiles {
		d.Put(p)
	}
	return d
}

var _ repository.ProfileDirectory = (*MemoryProfileDirectory)(nil)

func (d *MemoryProfileDirectory) Put(p *entity.Profile) {
	stored := *p
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	d.profiles[p.ID] = &stored
	d.mu.Unlock()
}

func (d *MemoryProfileDirectory) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Internal("Failed to get profile", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return nil, errors.NotFound("Profile", nil)
	}
	copied := *p
	return &copied, nil
}
