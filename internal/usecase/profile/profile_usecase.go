package profile

import (
	"context"
	"fmt"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/repository"
)

type ProfileUseCase struct {
	profileRepo repository.ProfileRepository
	index       repository.SpatialIndex
}

func NewProfileUseCase(
	profileRepo repository.ProfileRepository,
	index repository.SpatialIndex,
) *ProfileUseCase {
	return &ProfileUseCase{
		profileRepo: profileRepo,
		index:       index,
	}
}

// UpdateProfileRequest represents profile update request
type UpdateProfileRequest struct {
	Name          *string   `json:"name" binding:"omitempty,min=1,max=100"`
	Age           *int      `json:"age" binding:"omitempty,min=13,max=120"`
	City          *string   `json:"city" binding:"omitempty,max=100"`
	School        *string   `json:"school" binding:"omitempty,max=200"`
	College       *string   `json:"college" binding:"omitempty,max=200"`
	Workplace     *string   `json:"workplace" binding:"omitempty,max=200"`
	Interests     *[]string `json:"interests" binding:"omitempty,max=50,dive,min=1,max=50"`
	Latitude      *float64  `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude     *float64  `json:"longitude" binding:"omitempty,min=-180,max=180"`
	ClearLocation bool      `json:"clear_location"`
}

func (r *UpdateProfileRequest) empty() bool {
	return r.Name == nil && r.Age == nil && r.City == nil && r.School == nil &&
		r.College == nil && r.Workplace == nil && r.Interests == nil &&
		r.Latitude == nil && r.Longitude == nil && !r.ClearLocation
}

// ProfileResponse represents profile response with additional info
type ProfileResponse struct {
	*domain.UserProfile
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// GetMyProfile returns current user's profile
func (uc *ProfileUseCase) GetMyProfile(ctx context.Context, userID int) (*domain.UserProfile, error) {
	return uc.profileRepo.GetByID(ctx, userID)
}

// GetProfileByUserID returns a profile with the distance from the viewer
// when both have locations.
func (uc *ProfileUseCase) GetProfileByUserID(ctx context.Context, targetUserID, viewerID int) (*ProfileResponse, error) {
	profile, err := uc.profileRepo.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	response := &ProfileResponse{UserProfile: profile}
	if viewerID == targetUserID {
		return response, nil
	}

	viewer, err := uc.profileRepo.GetByID(ctx, viewerID)
	if err != nil {
		return response, nil
	}
	from, ok1 := viewer.Location()
	to, ok2 := profile.Location()
	if ok1 && ok2 {
		d := geo.Round2(geo.DistanceKm(from, to))
		response.DistanceKm = &d
	}
	return response, nil
}

// UpdateProfile applies the provided fields. Coordinates must come as a
// pair; clear_location removes them. The spatial index follows the store.
func (uc *ProfileUseCase) UpdateProfile(ctx context.Context, userID int, req *UpdateProfileRequest) (*domain.UserProfile, error) {
	if req.empty() {
		return nil, domain.ErrNoFieldsToUpdate
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be provided together", domain.ErrInvalidLocation)
	}
	if req.ClearLocation && req.Latitude != nil {
		return nil, fmt.Errorf("%w: clear_location conflicts with coordinates", domain.ErrInvalidLocation)
	}

	profile, err := uc.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		profile.Name = *req.Name
	}
	if req.Age != nil {
		profile.Age = req.Age
	}
	if req.City != nil {
		profile.City = req.City
	}
	if req.School != nil {
		profile.School = req.School
	}
	if req.College != nil {
		profile.College = req.College
	}
	if req.Workplace != nil {
		profile.Workplace = req.Workplace
	}
	if req.Interests != nil {
		profile.Interests = domain.NormalizeInterests(*req.Interests)
	}
	switch {
	case req.ClearLocation:
		profile.SetLocation(nil)
	case req.Latitude != nil:
		pt := geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
		if err := pt.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidLocation, err)
		}
		profile.SetLocation(&pt)
	}

	if err := uc.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := uc.reindex(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// reindex pushes the stored profile to the spatial index, retrying once.
// The store already holds the update, so a repeated request converges.
func (uc *ProfileUseCase) reindex(ctx context.Context, profile *domain.UserProfile) error {
	err := uc.index.Upsert(ctx, profile)
	if err == nil {
		return nil
	}
	logging.Ctx(ctx).Warn().Err(err).Int("user_id", profile.ID).Msg("failed to reindex profile, retrying")

	if err = uc.index.Upsert(ctx, profile); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int("user_id", profile.ID).Msg("failed to reindex profile")
		return fmt.Errorf("failed to index profile location: %w", err)
	}
	return nil
}
