package postgres

import (
	"context"
	"fmt"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/repository"
	"github.com/jmoiron/sqlx"
)

// spatialIndex queries the users table directly. The SQL only narrows
// rows to the bounding box; the great-circle check runs in Go so every
// backend agrees on the metric.
type spatialIndex struct {
	db *sqlx.DB
}

func NewSpatialIndex(db *sqlx.DB) repository.SpatialIndex {
	return &spatialIndex{db: db}
}

func (s *spatialIndex) Query(ctx context.Context, origin geo.Point, radiusKm float64, excludeID int) ([]domain.Candidate, error) {
	if origin.Validate() != nil {
		return nil, domain.ErrInvalidOrigin
	}

	box := geo.BoundingBox(origin, radiusKm)
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE id <> $1
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN $2 AND $3
		  AND longitude BETWEEN $4 AND $5
	`

	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, query, excludeID, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("spatial query failed: %w", err)
	}

	out := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		p := row.toDomain()
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

// Upsert is a no-op: the table is the index.
func (s *spatialIndex) Upsert(context.Context, *domain.UserProfile) error { return nil }

// Remove is a no-op: the table is the index.
func (s *spatialIndex) Remove(context.Context, int) error { return nil }
