// Package spatial provides an in-memory point index supporting bounding-box
// range queries over live stream coordinates.
package spatial

import (
	"math"
	"sync"

	"github.com/crowdlens/crowdlens/internal/geo"
)

// DefaultCellSizeDeg is the default grid cell edge in degrees. 0.01° of
// latitude is roughly 1.1 km, which keeps buckets small for city-scale
// viewports while bounding the number of cells a query has to visit.
const DefaultCellSizeDeg = 0.01

// cellKey identifies one grid bucket.
type cellKey struct {
	row int // floor(lat / cellSize)
	col int // floor(lng / cellSize)
}

// entry is a stored point.
type entry struct {
	lat float64
	lng float64
}

// Index is a grid-bucketed spatial index over identified points. Buckets are
// keyed by coarse lat/lng cell; queries enumerate the cells overlapping the
// box and filter precisely. Reads take a shared lock so range queries run
// concurrently with each other and see a consistent snapshot between writes.
type Index struct {
	mu       sync.RWMutex
	cellSize float64
	cells    map[cellKey]map[string]entry
	points   map[string]cellKey
}

// NewIndex creates an empty index with the default cell size.
func NewIndex() *Index {
	return NewIndexWithCellSize(DefaultCellSizeDeg)
}

// NewIndexWithCellSize creates an empty index with a custom cell size in
// degrees. Sizes outside (0, 1] fall back to the default.
func NewIndexWithCellSize(cellSizeDeg float64) *Index {
	if cellSizeDeg <= 0 || cellSizeDeg > 1 {
		cellSizeDeg = DefaultCellSizeDeg
	}
	return &Index{
		cellSize: cellSizeDeg,
		cells:    make(map[cellKey]map[string]entry),
		points:   make(map[string]cellKey),
	}
}

// keyFor maps a coordinate onto its grid cell.
func (ix *Index) keyFor(lat, lng float64) cellKey {
	return cellKey{
		row: int(math.Floor(lat / ix.cellSize)),
		col: int(math.Floor(lng / ix.cellSize)),
	}
}

// Insert adds or replaces the point stored under id.
func (ix *Index) Insert(id string, lat, lng float64) error {
	if err := geo.ValidateCoordinate(lat, lng); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.points[id]; ok {
		delete(ix.cells[old], id)
		if len(ix.cells[old]) == 0 {
			delete(ix.cells, old)
		}
	}

	key := ix.keyFor(lat, lng)
	bucket, ok := ix.cells[key]
	if !ok {
		bucket = make(map[string]entry)
		ix.cells[key] = bucket
	}
	bucket[id] = entry{lat: lat, lng: lng}
	ix.points[id] = key
	return nil
}

// Remove deletes the point stored under id. Removing an unknown id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key, ok := ix.points[id]
	if !ok {
		return
	}
	delete(ix.cells[key], id)
	if len(ix.cells[key]) == 0 {
		delete(ix.cells, key)
	}
	delete(ix.points, id)
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

// QueryBbox returns the ids of all points within the closed rectangle. Boxes
// crossing the antimeridian are split into two sub-queries and unioned.
func (ix *Index) QueryBbox(box geo.Bbox) ([]string, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var ids []string
	seen := make(map[string]struct{})
	for _, sub := range box.Split() {
		ix.collect(sub, seen, &ids)
	}
	return ids, nil
}

// collect appends ids in a non-wrapping sub-box, skipping duplicates across
// sub-queries.
func (ix *Index) collect(box geo.Bbox, seen map[string]struct{}, ids *[]string) {
	minRow := int(math.Floor(box.SWLat / ix.cellSize))
	maxRow := int(math.Floor(box.NELat / ix.cellSize))
	minCol := int(math.Floor(box.SWLng / ix.cellSize))
	maxCol := int(math.Floor(box.NELng / ix.cellSize))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			bucket, ok := ix.cells[cellKey{row: row, col: col}]
			if !ok {
				continue
			}
			for id, p := range bucket {
				if _, dup := seen[id]; dup {
					continue
				}
				if p.lat >= box.SWLat && p.lat <= box.NELat &&
					p.lng >= box.SWLng && p.lng <= box.NELng {
					seen[id] = struct{}{}
					*ids = append(*ids, id)
				}
			}
		}
	}
}

// QueryRadiusM returns ids of points whose great-circle distance to the
// center is at most radiusM. Implemented as a bbox prefilter followed by a
// precise haversine check.
func (ix *Index) QueryRadiusM(lat, lng, radiusM float64) ([]string, error) {
	if err := geo.ValidateCoordinate(lat, lng); err != nil {
		return nil, err
	}

	// Widen the prefilter box slightly so edge points survive into the
	// precise check.
	box := geo.BboxFromCenterM(lat, lng, radiusM*1.2)
	box.SWLat = math.Max(box.SWLat, -90)
	box.NELat = math.Min(box.NELat, 90)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var ids []string
	seen := make(map[string]struct{})
	for _, sub := range normalizeLngs(box).Split() {
		minRow := int(math.Floor(sub.SWLat / ix.cellSize))
		maxRow := int(math.Floor(sub.NELat / ix.cellSize))
		minCol := int(math.Floor(sub.SWLng / ix.cellSize))
		maxCol := int(math.Floor(sub.NELng / ix.cellSize))
		for row := minRow; row <= maxRow; row++ {
			for col := minCol; col <= maxCol; col++ {
				for id, p := range ix.cells[cellKey{row: row, col: col}] {
					if _, dup := seen[id]; dup {
						continue
					}
					if geo.HaversineDistanceM(lat, lng, p.lat, p.lng) <= radiusM {
						seen[id] = struct{}{}
						ids = append(ids, id)
					}
				}
			}
		}
	}
	return ids, nil
}

// normalizeLngs wraps out-of-range longitudes produced by widening a box near
// the antimeridian back into [-180, 180], turning the box into a wrapping one
// when needed.
func normalizeLngs(box geo.Bbox) geo.Bbox {
	if box.SWLng < -180 {
		box.SWLng += 360
	}
	if box.NELng > 180 {
		box.NELng -= 360
	}
	return box
}
