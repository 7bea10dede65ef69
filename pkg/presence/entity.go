// Package presence holds the entity data model shared by the feed
// subscribers and the proximity engine: roles, feed keys, entity
// snapshots, the per-feed cache and the update throttler.
package presence

import (
	"time"

	"github.com/teslashibe/go-nearby/pkg/geo"
)

// Role identifies which population an entity belongs to.
type Role string

const (
	RoleDriver     Role = "driver"
	RoleHitchhiker Role = "hitchhiker"
)

// Complement returns the opposite role. The secondary feed of an
// observer is always the complement of the observer's own role.
func (r Role) Complement() Role {
	if r == RoleDriver {
		return RoleHitchhiker
	}
	return RoleDriver
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleDriver || r == RoleHitchhiker
}

// FeedKey addresses one remote presence feed: all entities of a role
// heading to a destination.
type FeedKey struct {
	Role        Role
	Destination string
}

// Path returns the presence store path for this feed, "{role}s/{destination}".
func (k FeedKey) Path() string {
	return string(k.Role) + "s/" + k.Destination
}

// Entity is the last-known position report of one remote entity.
// Entities are replaced wholesale on each accepted update, never
// partially mutated.
type Entity struct {
	ID         string
	Position   geo.Coordinate
	ObservedAt time.Time
}

// Snapshot is the complete, deduplicated set of entities currently
// known for one feed, keyed by id. A snapshot is immutable once
// published; consumers may read it without locking.
type Snapshot map[string]Entity

// Equal reports whether two snapshots contain the same ids at the same
// coordinates. ObservedAt is deliberately ignored: a feed push that
// only refreshes timestamps is not a change worth recomputing for.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for id, e := range s {
		o, ok := other[id]
		if !ok || o.Position != e.Position {
			return false
		}
	}
	return true
}

// IDs returns the set of entity ids in the snapshot.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}
