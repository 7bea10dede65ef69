package monitor

import (
	"github.com/teslashibe/go-nearby/pkg/geo"
	"github.com/teslashibe/go-nearby/pkg/presence"
)

// Counts is the number of entities of each feed currently within the
// nearby radius of the observer.
type Counts struct {
	Primary   int `json:"primary"`
	Secondary int `json:"secondary"`
}

// NearbyCounts counts the entities in each snapshot within radiusKm of
// the observer. Pure function over its inputs: safe to call
// redundantly on observer movement, snapshot change or radius change.
func NearbyCounts(observer geo.Coordinate, primary, secondary presence.Snapshot, radiusKm float64) Counts {
	return Counts{
		Primary:   countWithin(observer, primary, radiusKm),
		Secondary: countWithin(observer, secondary, radiusKm),
	}
}

func countWithin(observer geo.Coordinate, snap presence.Snapshot, radiusKm float64) int {
	count := 0
	for _, e := range snap {
		if geo.DistanceKm(observer, e.Position) <= radiusKm {
			count++
		}
	}
	return count
}

// NearbyIDs returns the set of entity ids within radiusKm of the
// observer.
func NearbyIDs(observer geo.Coordinate, snap presence.Snapshot, radiusKm float64) map[string]struct{} {
	ids := make(map[string]struct{})
	for id, e := range snap {
		if geo.DistanceKm(observer, e.Position) <= radiusKm {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// NewlyNearby returns the ids within radius now that were not in prev.
// These are the candidates for a nearby notification.
func NewlyNearby(prev map[string]struct{}, observer geo.Coordinate, snap presence.Snapshot, radiusKm float64) []string {
	var fresh []string
	for id := range NearbyIDs(observer, snap, radiusKm) {
		if _, seen := prev[id]; !seen {
			fresh = append(fresh, id)
		}
	}
	return fresh
}
