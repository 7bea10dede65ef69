package monitor

import (
	"testing"
	"time"

	"github.com/teslashibe/go-nearby/pkg/geo"
	"github.com/teslashibe/go-nearby/pkg/presence"
)

func snapshotOf(entities ...presence.Entity) presence.Snapshot {
	snap := presence.Snapshot{}
	for _, e := range entities {
		snap[e.ID] = e
	}
	return snap
}

func at(id string, lat, lon float64) presence.Entity {
	return presence.Entity{
		ID:         id,
		Position:   geo.Coordinate{Lat: lat, Lon: lon},
		ObservedAt: time.Now(),
	}
}

func TestNearbyCounts_RadiusBoundary(t *testing.T) {
	observer := geo.Coordinate{Lat: 0, Lon: 0}

	// ~0.56km and ~2.2km from the observer
	primary := snapshotOf(at("near", 0, 0.005), at("far", 0, 0.02))
	secondary := snapshotOf(at("other", 0, 0.003))

	counts := NearbyCounts(observer, primary, secondary, 1.0)
	if counts.Primary != 1 {
		t.Errorf("Primary count: got %d, want 1", counts.Primary)
	}
	if counts.Secondary != 1 {
		t.Errorf("Secondary count: got %d, want 1", counts.Secondary)
	}
}

func TestNearbyCounts_EmptySnapshots(t *testing.T) {
	observer := geo.Coordinate{Lat: 0, Lon: 0}
	counts := NearbyCounts(observer, presence.Snapshot{}, presence.Snapshot{}, 1.0)
	if counts.Primary != 0 || counts.Secondary != 0 {
		t.Errorf("Counts for empty snapshots: got %+v, want zeros", counts)
	}
}

func TestNearbyCounts_Idempotent(t *testing.T) {
	observer := geo.Coordinate{Lat: 0, Lon: 0}
	snap := snapshotOf(at("a", 0, 0.005))

	first := NearbyCounts(observer, snap, nil, 1.0)
	second := NearbyCounts(observer, snap, nil, 1.0)
	if first != second {
		t.Errorf("Repeated computation differs: %+v vs %+v", first, second)
	}
}

func TestNearbyIDs(t *testing.T) {
	observer := geo.Coordinate{Lat: 0, Lon: 0}
	snap := snapshotOf(at("near", 0, 0.005), at("far", 0, 0.02))

	ids := NearbyIDs(observer, snap, 1.0)
	if len(ids) != 1 {
		t.Fatalf("NearbyIDs: got %d ids, want 1", len(ids))
	}
	if _, ok := ids["near"]; !ok {
		t.Error("Expected 'near' in nearby set")
	}
}

func TestNewlyNearby(t *testing.T) {
	observer := geo.Coordinate{Lat: 0, Lon: 0}
	snap := snapshotOf(at("a", 0, 0.005), at("b", 0, 0.006))

	fresh := NewlyNearby(map[string]struct{}{"a": {}}, observer, snap, 1.0)
	if len(fresh) != 1 || fresh[0] != "b" {
		t.Errorf("NewlyNearby: got %v, want [b]", fresh)
	}
}

func TestNewlyNearby_NothingNew(t *testing.T) {
	observer := geo.Coordinate{Lat: 0, Lon: 0}
	snap := snapshotOf(at("a", 0, 0.005))

	fresh := NewlyNearby(map[string]struct{}{"a": {}}, observer, snap, 1.0)
	if len(fresh) != 0 {
		t.Errorf("NewlyNearby: got %v, want empty", fresh)
	}
}
