package memory

import (
	"context"
	"math"
	"sync"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/repository"
)

const (
	defaultCellSizeKm = 10.0
	kmPerDegree       = 111.0
)

// GridIndex is a spatial hash grid over located profiles. Space is cut
// into square cells of cellSize degrees; a query visits only the cells
// overlapping the exact bounding box of the search circle and then
// filters by great-circle distance.
type GridIndex struct {
	mu       sync.RWMutex
	cells    map[cellKey][]*gridEntry
	entries  map[int]*gridEntry
	cellSize float64
}

type cellKey struct {
	X, Y int
}

type gridEntry struct {
	point   geo.Point
	profile *domain.UserProfile
	cell    cellKey
}

var _ repository.SpatialIndex = (*GridIndex)(nil)

// NewGridIndex creates an empty index. cellSizeKm <= 0 selects 10 km.
func NewGridIndex(cellSizeKm float64) *GridIndex {
	if cellSizeKm <= 0 {
		cellSizeKm = defaultCellSizeKm
	}
	return &GridIndex{
		cells:    make(map[cellKey][]*gridEntry),
		entries:  make(map[int]*gridEntry),
		cellSize: cellSizeKm / kmPerDegree,
	}
}

func (g *GridIndex) keyFor(lat, lng float64) cellKey {
	return cellKey{
		X: int(math.Floor(lng / g.cellSize)),
		Y: int(math.Floor(lat / g.cellSize)),
	}
}

func (g *GridIndex) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeUnlocked(profile.ID)

	pt, ok := profile.Location()
	if !ok {
		return nil
	}

	e := &gridEntry{
		point:   pt,
		profile: profile.Clone(),
		cell:    g.keyFor(pt.Lat, pt.Lng),
	}
	g.cells[e.cell] = append(g.cells[e.cell], e)
	g.entries[profile.ID] = e
	return nil
}

func (g *GridIndex) Remove(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeUnlocked(id)
	return nil
}

// removeUnlocked drops id from its cell; caller holds the write lock.
func (g *GridIndex) removeUnlocked(id int) {
	e, ok := g.entries[id]
	if !ok {
		return
	}
	delete(g.entries, id)

	cell := g.cells[e.cell]
	for i, other := range cell {
		if other == e {
			cell[i] = cell[len(cell)-1]
			cell[len(cell)-1] = nil
			cell = cell[:len(cell)-1]
			break
		}
	}
	if len(cell) == 0 {
		delete(g.cells, e.cell)
		return
	}
	g.cells[e.cell] = cell
}

func (g *GridIndex) Query(ctx context.Context, origin geo.Point, radiusKm float64, excludeID int) ([]domain.Candidate, error) {
	if origin.Validate() != nil {
		return nil, domain.ErrInvalidOrigin
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := geo.BoundingBox(origin, radiusKm)
	lo := g.keyFor(box.MinLat, box.MinLng)
	hi := g.keyFor(box.MaxLat, box.MaxLng)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Candidate
	visit := func(entries []*gridEntry) {
		for _, e := range entries {
			if e.profile.ID == excludeID || !box.Contains(e.point) {
				continue
			}
			d := geo.DistanceKm(origin, e.point)
			if d <= radiusKm {
				out = append(out, domain.Candidate{Profile: e.profile.Clone(), DistanceKm: d})
			}
		}
	}

	span := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1)
	if span > float64(len(g.cells)) {
		// Wide searches touch more cells than exist; walk the populated ones.
		for k, entries := range g.cells {
			if k.X >= lo.X && k.X <= hi.X && k.Y >= lo.Y && k.Y <= hi.Y {
				visit(entries)
			}
		}
		return out, nil
	}

	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			if entries, ok := g.cells[cellKey{X: x, Y: y}]; ok {
				visit(entries)
			}
		}
	}
	return out, nil
}

// Size returns the number of indexed profiles.
func (g *GridIndex) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}
