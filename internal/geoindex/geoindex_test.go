package geoindex

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/terrasiaga/coordination/internal/cerr"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Jakarta -> Bandung, roughly 116 km.
	jakarta := Point{Lat: -6.2088, Lon: 106.8456}
	bandung := Point{Lat: -6.9175, Lon: 107.6191}

	d := Haversine(jakarta, bandung)
	if d < 110000 || d > 125000 {
		t.Errorf("expected ~116km, got %.0fm", d)
	}

	if d := Haversine(jakarta, jakarta); d != 0 {
		t.Errorf("expected 0 distance to self, got %f", d)
	}
}

func TestIndex_InsertInvalidCoordinates(t *testing.T) {
	ix := New()
	err := ix.Insert("bad", Point{Lat: 95.0, Lon: 10.0})
	var geoErr *cerr.GeoIndexError
	if !errors.As(err, &geoErr) {
		t.Fatalf("expected GeoIndexError, got %v", err)
	}
}

func TestIndex_RemoveIdempotent(t *testing.T) {
	ix := New()
	if err := ix.Insert("a", Point{Lat: 1, Lon: 1}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	ix.Remove("a")
	ix.Remove("a") // second remove is a no-op
	if ix.Len() != 0 {
		t.Errorf("expected empty index, got %d entries", ix.Len())
	}
}

func TestIndex_NearestOrderingAndTies(t *testing.T) {
	ix := New()
	origin := Point{Lat: 0, Lon: 0}

	// b and c are equidistant from origin; tie breaks by id ascending.
	ix.Insert("far", Point{Lat: 2, Lon: 0})
	ix.Insert("c", Point{Lat: 1, Lon: 0})
	ix.Insert("b", Point{Lat: -1, Lon: 0})
	ix.Insert("near", Point{Lat: 0.1, Lon: 0})

	ms, err := ix.Nearest(origin, 3)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	got := []string{ms[0].ID, ms[1].ID, ms[2].ID}
	want := []string{"near", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestIndex_NearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ix := New()

	type entry struct {
		id string
		p  Point
	}
	var entries []entry
	for i := 0; i < 200; i++ {
		e := entry{
			id: fmt.Sprintf("pt-%03d", i),
			p:  Point{Lat: rng.Float64()*10 - 5, Lon: rng.Float64()*10 + 100},
		}
		entries = append(entries, e)
		if err := ix.Insert(e.id, e.p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	for trial := 0; trial < 20; trial++ {
		q := Point{Lat: rng.Float64()*10 - 5, Lon: rng.Float64()*10 + 100}
		k := 1 + rng.Intn(20)

		brute := make([]Match, len(entries))
		for i, e := range entries {
			brute[i] = Match{ID: e.id, Meters: Haversine(q, e.p)}
		}
		sort.Slice(brute, func(i, j int) bool {
			if brute[i].Meters != brute[j].Meters {
				return brute[i].Meters < brute[j].Meters
			}
			return brute[i].ID < brute[j].ID
		})

		got, err := ix.Nearest(q, k)
		if err != nil {
			t.Fatalf("Nearest failed: %v", err)
		}
		if len(got) != k {
			t.Fatalf("expected %d results, got %d", k, len(got))
		}
		for i := 0; i < k; i++ {
			if got[i].ID != brute[i].ID {
				t.Fatalf("trial %d rank %d: got %s, brute force says %s", trial, i, got[i].ID, brute[i].ID)
			}
		}
	}
}

func TestIndex_WithinExactSet(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ix := New()

	pts := make(map[string]Point)
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("pt-%03d", i)
		p := Point{Lat: rng.Float64()*2 - 1, Lon: rng.Float64()*2 - 1}
		pts[id] = p
		ix.Insert(id, p)
	}

	q := Point{Lat: 0, Lon: 0}
	radius := 60000.0

	want := make(map[string]bool)
	for id, p := range pts {
		if Haversine(q, p) <= radius {
			want[id] = true
		}
	}

	ms, err := ix.Within(q, radius)
	if err != nil {
		t.Fatalf("Within failed: %v", err)
	}
	if len(ms) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(ms))
	}
	for i, m := range ms {
		if !want[m.ID] {
			t.Errorf("unexpected match %s", m.ID)
		}
		if i > 0 && ms[i-1].Meters > m.Meters {
			t.Errorf("results not ordered by distance at index %d", i)
		}
	}
}

func TestIndex_ConcurrentReadsAndWrites(t *testing.T) {
	ix := New()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				ix.Insert(id, Point{Lat: float64(i % 80), Lon: float64(w)})
				if i%3 == 0 {
					ix.Remove(id)
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := ix.Nearest(Point{Lat: 1, Lon: 1}, 5); err != nil {
					t.Errorf("Nearest failed: %v", err)
					return
				}
				if _, err := ix.Within(Point{Lat: 1, Lon: 1}, 1e6); err != nil {
					t.Errorf("Within failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, m := range mustNearest(t, ix, Point{Lat: 0, Lon: 0}, ix.Len()) {
		if math.IsNaN(m.Meters) {
			t.Errorf("NaN distance for %s", m.ID)
		}
	}
}

func mustNearest(t *testing.T, ix *Index, p Point, k int) []Match {
	t.Helper()
	ms, err := ix.Nearest(p, k)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	return ms
}
