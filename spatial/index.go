package spatial

import (
	"math"
	"sync"
)

// Candidate is a point returned from a radius query.
type Candidate struct {
	ID       string
	Lat, Lon float64
}

type cellKey struct {
	y, x int
}

type point struct {
	lat, lon float64
}

// Index is an in-memory grid over the coordinate space. Points land in
// fixed-size cells; a radius query touches only the small neighborhood
// of cells covering the radius and then applies the exact Haversine
// filter, so query cost scales with local density rather than total
// spawn count. Safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	cellDeg  float64 // cell edge in degrees of latitude
	cellM    float64 // cell edge in meters at the equator
	lonCells int     // columns around the globe, for antimeridian wrap

	cells map[cellKey]map[string]point
	keys  map[string]cellKey // id -> cell, for O(1) removal
}

// NewIndex builds a grid with cells roughly cellSizeMeters on a side.
// Size cells near the typical query radius; 200 matches the default
// Nearby radius.
func NewIndex(cellSizeMeters float64) *Index {
	if cellSizeMeters <= 0 {
		cellSizeMeters = 200
	}
	cellDeg := cellSizeMeters / metersPerDegree
	return &Index{
		cellDeg:  cellDeg,
		cellM:    cellSizeMeters,
		lonCells: int(math.Ceil(360 / cellDeg)),
		cells:    make(map[cellKey]map[string]point),
		keys:     make(map[string]cellKey),
	}
}

func (idx *Index) cellOf(lat, lon float64) cellKey {
	y := int(math.Floor(lat / idx.cellDeg))
	x := int(math.Floor(lon / idx.cellDeg))
	return cellKey{y: y, x: idx.wrapX(x)}
}

func (idx *Index) wrapX(x int) int {
	x %= idx.lonCells
	if x < 0 {
		x += idx.lonCells
	}
	return x
}

// Insert registers a point under id. Re-inserting an existing id moves it.
func (idx *Index) Insert(id string, lat, lon float64) {
	key := idx.cellOf(lat, lon)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.keys[id]; ok {
		delete(idx.cells[old], id)
		if len(idx.cells[old]) == 0 {
			delete(idx.cells, old)
		}
	}
	cell, ok := idx.cells[key]
	if !ok {
		cell = make(map[string]point)
		idx.cells[key] = cell
	}
	cell[id] = point{lat: lat, lon: lon}
	idx.keys[id] = key
}

// Remove drops id from the index. Unknown ids are a no-op.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key, ok := idx.keys[id]
	if !ok {
		return
	}
	delete(idx.cells[key], id)
	if len(idx.cells[key]) == 0 {
		delete(idx.cells, key)
	}
	delete(idx.keys, id)
}

// Query returns every indexed point within radiusM meters of (lat, lon).
// Result order is unspecified.
func (idx *Index) Query(lat, lon, radiusM float64) []Candidate {
	if radiusM <= 0 {
		return nil
	}

	// Cell ring covering the radius, plus one cell to absorb the query
	// point's offset inside its own cell. Longitude degrees shrink with
	// latitude, so widen the column span by 1/cos(lat); clamp near the
	// poles where a ring degenerates into the full band.
	ring := int(math.Ceil(radiusM/idx.cellM)) + 1
	cosLat := math.Cos(lat * math.Pi / 180)
	lonRing := idx.lonCells / 2
	if cosLat > 0.01 {
		lonRing = int(math.Ceil(float64(ring) / cosLat))
		if lonRing > idx.lonCells/2 {
			lonRing = idx.lonCells / 2
		}
	}

	center := cellKey{
		y: int(math.Floor(lat / idx.cellDeg)),
		x: int(math.Floor(lon / idx.cellDeg)),
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	minX, maxX := center.x-lonRing, center.x+lonRing
	if maxX-minX+1 >= idx.lonCells {
		// Full band; avoid visiting wrapped columns twice.
		minX, maxX = 0, idx.lonCells-1
	}

	var out []Candidate
	for y := center.y - ring; y <= center.y+ring; y++ {
		for x := minX; x <= maxX; x++ {
			cell, ok := idx.cells[cellKey{y: y, x: idx.wrapX(x)}]
			if !ok {
				continue
			}
			for id, p := range cell {
				if Haversine(lat, lon, p.lat, p.lon) <= radiusM {
					out = append(out, Candidate{ID: id, Lat: p.lat, Lon: p.lon})
				}
			}
		}
	}
	return out
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keys)
}

// IDs returns a snapshot of every indexed id.
func (idx *Index) IDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.keys))
	for id := range idx.keys {
		out = append(out, id)
	}
	return out
}
