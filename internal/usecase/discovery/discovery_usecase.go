package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/metrics"
	"github.com/gdugdh24/yuno-backend/internal/repository"
)

// FallbackConfig supplies an origin for requesters without a stored
// location. Meant for development data; production leaves it disabled.
type FallbackConfig struct {
	Enabled bool
	Origin  geo.Point
}

// Config bounds discovery queries.
type Config struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	DefaultLimit    int
	MaxLimit        int
	Fallback        FallbackConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultRadiusKm: 10,
		MaxRadiusKm:     100,
		DefaultLimit:    20,
		MaxLimit:        100,
	}
}

type DiscoveryUseCase struct {
	profileRepo repository.ProfileRepository
	index       repository.SpatialIndex
	cfg         Config
}

func NewDiscoveryUseCase(
	profileRepo repository.ProfileRepository,
	index repository.SpatialIndex,
	cfg Config,
) *DiscoveryUseCase {
	def := DefaultConfig()
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = def.MaxRadiusKm
	}
	if cfg.DefaultRadiusKm <= 0 || cfg.DefaultRadiusKm > cfg.MaxRadiusKm {
		cfg.DefaultRadiusKm = math.Min(def.DefaultRadiusKm, cfg.MaxRadiusKm)
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(def.DefaultLimit, cfg.MaxLimit)
	}
	return &DiscoveryUseCase{
		profileRepo: profileRepo,
		index:       index,
		cfg:         cfg,
	}
}

// Config returns the effective limits.
func (uc *DiscoveryUseCase) Config() Config {
	return uc.cfg
}

// Discover returns one page of nearby users ranked by commonality score
// (desc), then distance (asc), then id (asc).
func (uc *DiscoveryUseCase) Discover(ctx context.Context, q domain.DiscoveryQuery) (*domain.Page, error) {
	start := time.Now()

	page, candidates, err := uc.discover(ctx, q)
	metrics.RecordDiscovery(outcome(err), candidates, time.Since(start))
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (uc *DiscoveryUseCase) discover(ctx context.Context, q domain.DiscoveryQuery) (*domain.Page, int, error) {
	if err := uc.validateRadius(q.RadiusKm); err != nil {
		return nil, -1, err
	}
	if q.Limit < 1 || q.Limit > uc.cfg.MaxLimit || q.Offset < 0 {
		return nil, -1, fmt.Errorf("%w: limit must be in [1, %d] and offset >= 0", domain.ErrInvalidPagination, uc.cfg.MaxLimit)
	}

	requester, err := uc.requester(ctx, q.RequesterID)
	if err != nil {
		return nil, -1, err
	}

	origin, err := uc.resolveOrigin(requester, q.Origin)
	if err != nil {
		return nil, -1, err
	}

	ranked, candidates, err := uc.rank(ctx, requester, origin, q.RadiusKm)
	if err != nil {
		return nil, candidates, err
	}

	results := paginate(ranked, q.Offset, q.Limit)
	return &domain.Page{
		Results:  results,
		Origin:   origin,
		RadiusKm: q.RadiusKm,
		Limit:    q.Limit,
		Offset:   q.Offset,
		HasMore:  len(results) == q.Limit,
	}, candidates, nil
}

func (uc *DiscoveryUseCase) validateRadius(r float64) error {
	if math.IsNaN(r) || r <= 0 || r > uc.cfg.MaxRadiusKm {
		return fmt.Errorf("%w: radius must be in (0, %g] km", domain.ErrInvalidRadius, uc.cfg.MaxRadiusKm)
	}
	return nil
}

func (uc *DiscoveryUseCase) requester(ctx context.Context, id int) (*domain.UserProfile, error) {
	requester, err := uc.profileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			logging.Ctx(ctx).Warn().Int("user_id", id).Msg("authenticated requester has no profile")
			return nil, err
		}
		return nil, fmt.Errorf("failed to get requester profile: %w", err)
	}
	return requester, nil
}

// resolveOrigin picks the explicit origin, then the stored location, then
// the configured fallback.
func (uc *DiscoveryUseCase) resolveOrigin(requester *domain.UserProfile, explicit *geo.Point) (geo.Point, error) {
	if explicit != nil {
		if explicit.Validate() != nil {
			return geo.Point{}, domain.ErrInvalidOrigin
		}
		return *explicit, nil
	}
	if pt, ok := requester.Location(); ok {
		return pt, nil
	}
	if uc.cfg.Fallback.Enabled {
		return uc.cfg.Fallback.Origin, nil
	}
	return geo.Point{}, domain.ErrLocationRequired
}

// rank returns every scored candidate within radiusKm of origin, fully
// sorted. The second return value is the raw index hit count.
func (uc *DiscoveryUseCase) rank(ctx context.Context, requester *domain.UserProfile, origin geo.Point, radiusKm float64) ([]domain.CommonalityResult, int, error) {
	hits, err := uc.index.Query(ctx, origin, radiusKm, requester.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrigin) || isContextErr(err) {
			return nil, -1, err
		}
		return nil, -1, fmt.Errorf("spatial query failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, len(hits), err
	}

	seen := make(map[int]struct{}, len(hits))
	results := make([]domain.CommonalityResult, 0, len(hits))
	for _, hit := range hits {
		p := hit.Profile
		if p == nil || p.ID == requester.ID {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		if _, ok := p.Location(); !ok {
			continue
		}
		if math.IsNaN(hit.DistanceKm) || hit.DistanceKm < 0 || hit.DistanceKm > radiusKm {
			continue
		}
		seen[p.ID] = struct{}{}

		res := Score(requester, p)
		res.DistanceKm = hit.DistanceKm
		results = append(results, res)
	}

	sortResults(results)
	return results, len(hits), nil
}

func sortResults(results []domain.CommonalityResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Candidate.ID < b.Candidate.ID
	})
}

func paginate(results []domain.CommonalityResult, offset, limit int) []domain.CommonalityResult {
	if offset >= len(results) {
		return []domain.CommonalityResult{}
	}
	end := min(offset+limit, len(results))
	return results[offset:end]
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLocationRequired),
		errors.Is(err, domain.ErrInvalidOrigin),
		errors.Is(err, domain.ErrInvalidRadius),
		errors.Is(err, domain.ErrInvalidPagination):
		return "invalid"
	case isContextErr(err):
		return "canceled"
	default:
		return "error"
	}
}
