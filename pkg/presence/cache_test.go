package presence

import (
	"testing"
	"time"

	"github.com/teslashibe/go-nearby/pkg/geo"
)

func entity(id string, lat, lon float64) Entity {
	return Entity{
		ID:         id,
		Position:   geo.Coordinate{Lat: lat, Lon: lon},
		ObservedAt: time.Now(),
	}
}

func TestCache_ApplyReportsChange(t *testing.T) {
	c := NewCache()

	snap, changed := c.Apply([]Entity{entity("a", 1, 2), entity("b", 3, 4)})
	if !changed {
		t.Error("First apply should report change")
	}
	if len(snap) != 2 {
		t.Errorf("Snapshot size: got %d, want 2", len(snap))
	}
}

func TestCache_ApplyIdenticalIsNoop(t *testing.T) {
	c := NewCache()

	first, _ := c.Apply([]Entity{entity("a", 1, 2), entity("b", 3, 4)})

	// Same ids and coordinates, fresh ObservedAt values
	second, changed := c.Apply([]Entity{entity("b", 3, 4), entity("a", 1, 2)})
	if changed {
		t.Error("Identical apply should report no change")
	}

	// Unchanged applies must keep the previous snapshot reference
	if len(second) != len(first) {
		t.Errorf("Snapshot size changed: got %d, want %d", len(second), len(first))
	}
	if c.Current()["a"].ObservedAt != first["a"].ObservedAt {
		t.Error("Unchanged apply replaced the internal snapshot")
	}
}

func TestCache_ApplyDetectsMovement(t *testing.T) {
	c := NewCache()

	c.Apply([]Entity{entity("a", 1, 2)})

	_, changed := c.Apply([]Entity{entity("a", 1, 2.001)})
	if !changed {
		t.Error("Moved entity should report change")
	}
}

func TestCache_ApplyDetectsRemoval(t *testing.T) {
	c := NewCache()

	c.Apply([]Entity{entity("a", 1, 2), entity("b", 3, 4)})

	snap, changed := c.Apply([]Entity{entity("a", 1, 2)})
	if !changed {
		t.Error("Entity absent from new snapshot should report change")
	}
	if _, ok := snap["b"]; ok {
		t.Error("Removed entity still present in snapshot")
	}
}

func TestCache_ApplyDeduplicatesByID(t *testing.T) {
	c := NewCache()

	snap, _ := c.Apply([]Entity{entity("a", 1, 2), entity("a", 5, 6)})
	if len(snap) != 1 {
		t.Errorf("Snapshot size after duplicate ids: got %d, want 1", len(snap))
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()

	c.Apply([]Entity{entity("a", 1, 2)})
	c.Clear()

	if len(c.Current()) != 0 {
		t.Errorf("Snapshot after clear: got %d entities, want 0", len(c.Current()))
	}

	// Re-applying the same entities after clear is a change again
	_, changed := c.Apply([]Entity{entity("a", 1, 2)})
	if !changed {
		t.Error("Apply after clear should report change")
	}
}

func TestCache_CurrentEmptyByDefault(t *testing.T) {
	c := NewCache()
	if c.Current() == nil || len(c.Current()) != 0 {
		t.Errorf("New cache snapshot: got %v, want empty", c.Current())
	}
}
