package geo

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := Coordinate{Lat: 38.7223, Lon: -9.1393}  // Lisbon
	b := Coordinate{Lat: 41.1579, Lon: -8.6291}  // Porto

	ab := DistanceKm(a, b)
	ba := DistanceKm(b, a)

	if !floatEquals(ab, ba) {
		t.Errorf("Distance not symmetric: a->b %v, b->a %v", ab, ba)
	}
}

func TestDistanceKm_ZeroForSamePoint(t *testing.T) {
	a := Coordinate{Lat: 38.7223, Lon: -9.1393}

	if d := DistanceKm(a, a); d != 0 {
		t.Errorf("Distance to self: got %v, want 0", d)
	}
}

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Coordinate
		wantKm float64
		tolKm  float64
	}{
		{
			// One degree of latitude is ~111.2 km everywhere
			name:   "one degree latitude at equator",
			a:      Coordinate{Lat: 0, Lon: 0},
			b:      Coordinate{Lat: 1, Lon: 0},
			wantKm: 111.2,
			tolKm:  0.3,
		},
		{
			name:   "half a kilometer of longitude at equator",
			a:      Coordinate{Lat: 0, Lon: 0},
			b:      Coordinate{Lat: 0, Lon: 0.005},
			wantKm: 0.556,
			tolKm:  0.01,
		},
		{
			name:   "Lisbon to Porto",
			a:      Coordinate{Lat: 38.7223, Lon: -9.1393},
			b:      Coordinate{Lat: 41.1579, Lon: -8.6291},
			wantKm: 274,
			tolKm:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Errorf("DistanceKm: got %v, want %v (±%v)", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestDistanceKm_MonotonicWithSeparation(t *testing.T) {
	origin := Coordinate{Lat: 0, Lon: 0}

	prev := 0.0
	for _, lon := range []float64{0.005, 0.02, 0.1, 1, 10} {
		d := DistanceKm(origin, Coordinate{Lat: 0, Lon: lon})
		if d <= prev {
			t.Errorf("Distance at lon %v not increasing: got %v, previous %v", lon, d, prev)
		}
		prev = d
	}
}

func TestCoordinate_Valid(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinate
		want bool
	}{
		{"origin", Coordinate{0, 0}, true},
		{"extremes", Coordinate{90, 180}, true},
		{"negative extremes", Coordinate{-90, -180}, true},
		{"latitude too high", Coordinate{90.1, 0}, false},
		{"latitude too low", Coordinate{-91, 0}, false},
		{"longitude too high", Coordinate{0, 180.5}, false},
		{"longitude too low", Coordinate{0, -181}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid(%+v): got %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}
