package repository

import (
	"context"
	"fmt"
)

// WarmSpatialIndex loads every located profile from repo into index and
// returns how many were indexed.
func WarmSpatialIndex(ctx context.Context, repo ProfileRepository, index SpatialIndex) (int, error) {
	profiles, err := repo.ListWithLocation(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list located profiles: %w", err)
	}
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := index.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("failed to index user %d: %w", p.ID, err)
		}
	}
	return len(profiles), nil
}
