// Package geoindex provides a concurrency-safe spatial index over point
// locations with nearest-k and radius queries by great-circle distance.
package geoindex

import (
	"math"
	"sort"
	"sync"

	"github.com/terrasiaga/coordination/internal/cerr"
)

const earthRadiusM = 6371000.0

type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between two WGS84 points in
// meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

func validPoint(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// Match is a query result: an indexed id and its distance from the query
// point.
type Match struct {
	ID     string
	Meters float64
}

// Index maps ids to points. Writes hold a short exclusive section; queries
// copy the entry set under a read lock and do the distance math outside it.
type Index struct {
	mu     sync.RWMutex
	points map[string]Point
}

func New() *Index {
	return &Index{points: make(map[string]Point)}
}

// Insert adds or replaces the point for id.
func (ix *Index) Insert(id string, p Point) error {
	if !validPoint(p) {
		return &cerr.GeoIndexError{Lat: p.Lat, Lon: p.Lon}
	}
	ix.mu.Lock()
	ix.points[id] = p
	ix.mu.Unlock()
	return nil
}

// Remove deletes id from the index. Removing an absent id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	delete(ix.points, id)
	ix.mu.Unlock()
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

func (ix *Index) snapshot() map[string]Point {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	cp := make(map[string]Point, len(ix.points))
	for id, p := range ix.points {
		cp[id] = p
	}
	return cp
}

func sortMatches(ms []Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Meters != ms[j].Meters {
			return ms[i].Meters < ms[j].Meters
		}
		return ms[i].ID < ms[j].ID
	})
}

// Nearest returns up to k ids ordered by increasing distance from p, ties
// broken by id ascending.
func (ix *Index) Nearest(p Point, k int) ([]Match, error) {
	if !validPoint(p) {
		return nil, &cerr.GeoIndexError{Lat: p.Lat, Lon: p.Lon}
	}
	if k <= 0 {
		return nil, nil
	}

	entries := ix.snapshot()
	ms := make([]Match, 0, len(entries))
	for id, pt := range entries {
		ms = append(ms, Match{ID: id, Meters: Haversine(p, pt)})
	}
	sortMatches(ms)
	if len(ms) > k {
		ms = ms[:k]
	}
	return ms, nil
}

// Within returns all ids with distance <= radiusM from p, ordered the same
// way as Nearest.
func (ix *Index) Within(p Point, radiusM float64) ([]Match, error) {
	if !validPoint(p) {
		return nil, &cerr.GeoIndexError{Lat: p.Lat, Lon: p.Lon}
	}

	entries := ix.snapshot()
	var ms []Match
	for id, pt := range entries {
		if d := Haversine(p, pt); d <= radiusM {
			ms = append(ms, Match{ID: id, Meters: d})
		}
	}
	sortMatches(ms)
	return ms, nil
}
