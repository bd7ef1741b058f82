// Package georedis implements the spatial index on top of Redis GEO sets.
package georedis

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/repository"
	"github.com/gdugdh24/yuno-backend/internal/repository/memory"
)

// Redis cannot index latitudes beyond this bound.
const maxRedisLat = 85.05112878

// Redis measures with a slightly larger earth radius; searches are padded
// and re-filtered with geo.DistanceKm.
const radiusPadding = 1.01

// SpatialIndex keeps user ids in a GEO sorted set and hydrates hits from the
// profile repository. Profiles outside the Redis latitude range live in a
// small in-process grid.
type SpatialIndex struct {
	client   redis.Cmdable
	key      string
	profiles repository.ProfileRepository
	polar    *memory.GridIndex
}

var _ repository.SpatialIndex = (*SpatialIndex)(nil)

func NewSpatialIndex(client redis.Cmdable, key string, profiles repository.ProfileRepository) *SpatialIndex {
	return &SpatialIndex{
		client:   client,
		key:      key,
		profiles: profiles,
		polar:    memory.NewGridIndex(0),
	}
}

func (s *SpatialIndex) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	member := strconv.Itoa(profile.ID)

	pt, ok := profile.Location()
	if !ok {
		return s.Remove(ctx, profile.ID)
	}

	if math.Abs(pt.Lat) > maxRedisLat {
		if err := s.client.ZRem(ctx, s.key, member).Err(); err != nil {
			return fmt.Errorf("failed to remove user %d from geo set: %w", profile.ID, err)
		}
		return s.polar.Upsert(ctx, profile)
	}

	if err := s.polar.Remove(ctx, profile.ID); err != nil {
		return err
	}
	err := s.client.GeoAdd(ctx, s.key, &redis.GeoLocation{
		Name:      member,
		Longitude: pt.Lng,
		Latitude:  pt.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index user %d: %w", profile.ID, err)
	}
	return nil
}

func (s *SpatialIndex) Remove(ctx context.Context, id int) error {
	if err := s.polar.Remove(ctx, id); err != nil {
		return err
	}
	if err := s.client.ZRem(ctx, s.key, strconv.Itoa(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove user %d from geo set: %w", id, err)
	}
	return nil
}

func (s *SpatialIndex) Query(ctx context.Context, origin geo.Point, radiusKm float64, excludeID int) ([]domain.Candidate, error) {
	if origin.Validate() != nil {
		return nil, domain.ErrInvalidOrigin
	}

	out, err := s.polar.Query(ctx, origin, radiusKm, excludeID)
	if err != nil {
		return nil, err
	}

	// GEOSEARCH rejects centers outside its latitude range; polar origins
	// are served from the in-process grid plus a clamped Redis search.
	center := origin
	pad := 0.0
	if math.Abs(center.Lat) > maxRedisLat {
		clamped := math.Copysign(maxRedisLat, center.Lat)
		pad = geo.DistanceKm(origin, geo.Point{Lat: clamped, Lng: center.Lng})
		center.Lat = clamped
	}

	locs, err := s.client.GeoSearchLocation(ctx, s.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     (radiusKm+pad)*radiusPadding + 0.001,
			RadiusUnit: "km",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search failed: %w", err)
	}

	ids := make([]int, 0, len(locs))
	for _, loc := range locs {
		id, err := strconv.Atoi(loc.Name)
		if err != nil || id == excludeID {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return out, nil
	}

	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate geo hits: %w", err)
	}

	for _, id := range ids {
		p, ok := profiles[id]
		if !ok {
			continue
		}
		// The stored profile is authoritative; the geo set may lag behind.
		pt, ok := p.Location()
		if !ok {
			continue
		}
		if d := geo.DistanceKm(origin, pt); d <= radiusKm {
			out = append(out, domain.Candidate{Profile: p, DistanceKm: d})
		}
	}
	return out, nil
}
