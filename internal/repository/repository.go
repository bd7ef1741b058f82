package repository

import (
	"context"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
)

// ProfileRepository stores user profiles. Lookups of unknown ids return
// domain.ErrUserNotFound.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.UserProfile) error
	GetByID(ctx context.Context, id int) (*domain.UserProfile, error)
	// GetByIDs returns the profiles that exist, keyed by id. Unknown ids are
	// skipped.
	GetByIDs(ctx context.Context, ids []int) (map[int]*domain.UserProfile, error)
	Update(ctx context.Context, profile *domain.UserProfile) error
	// ListWithLocation returns every profile that has both coordinates set.
	ListWithLocation(ctx context.Context) ([]*domain.UserProfile, error)
}

// SpatialIndex answers "who is within R km of a point".
//
// Query returns every located profile whose great-circle distance from
// origin is <= radiusKm, excluding excludeID. Results carry the distance
// and are in no particular order. An invalid origin yields
// domain.ErrInvalidOrigin.
type SpatialIndex interface {
	Query(ctx context.Context, origin geo.Point, radiusKm float64, excludeID int) ([]domain.Candidate, error)
	// Upsert reindexes a profile; a profile without location is removed.
	Upsert(ctx context.Context, profile *domain.UserProfile) error
	Remove(ctx context.Context, id int) error
}
