// Package memory holds in-process implementations of the repository
// interfaces, used for development and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/repository"
)

// ProfileRepository is the in-memory profile store.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[int]*domain.UserProfile
	nextID   int
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[int]*domain.UserProfile),
		nextID:   1,
	}
}

// LoadProfiles reads a JSON array of profiles from path into a new
// repository. Profiles keep their ids when set.
func LoadProfiles(ctx context.Context, path string) (*ProfileRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed []*domain.UserProfile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	repo := NewProfileRepository()
	for _, p := range seed {
		if err := repo.Create(ctx, p); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)

func (r *ProfileRepository) Create(ctx context.Context, profile *domain.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if profile.ID == 0 {
		profile.ID = r.nextID
	}
	if _, exists := r.profiles[profile.ID]; exists {
		return fmt.Errorf("user %d already exists", profile.ID)
	}
	if profile.ID >= r.nextID {
		r.nextID = profile.ID + 1
	}

	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	profile.Interests = domain.NormalizeInterests(profile.Interests)

	r.profiles[profile.ID] = profile.Clone()
	return nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int) (*domain.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return p.Clone(), nil
}

func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []int) (map[int]*domain.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]*domain.UserProfile, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile *domain.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.profiles[profile.ID]
	if !ok {
		return domain.ErrUserNotFound
	}

	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now().UTC()
	profile.Interests = domain.NormalizeInterests(profile.Interests)
	r.profiles[profile.ID] = profile.Clone()
	return nil
}

func (r *ProfileRepository) ListWithLocation(ctx context.Context) ([]*domain.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.UserProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		if _, ok := p.Location(); ok {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
