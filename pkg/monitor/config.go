// Package monitor implements the proximity presence engine: it
// subscribes to the two remote presence feeds for a destination,
// maintains throttled local entity caches, computes nearby counts
// against a radius, and raises one-shot notifications when an entity
// of the opposite role first comes within range.
package monitor

import "time"

// Config holds all tunable parameters for a monitoring session.
type Config struct {
	// RadiusKm is the default nearby radius when a session does not
	// specify one.
	RadiusKm float64

	// RecordLimit caps how many records a feed push may carry.
	RecordLimit int

	// StalenessWindow excludes records observed longer ago than this.
	StalenessWindow time.Duration

	// FeedThrottle is the minimum interval between two accepted feed
	// pushes. It is session-global per feed, not per entity, so a
	// fast-moving entity can appear frozen for up to one window.
	FeedThrottle time.Duration

	// UIThrottle is the minimum interval between two counts-callback
	// emissions.
	UIThrottle time.Duration

	// NotificationsEnabled controls whether nearby alerts fire at all.
	// Can be changed at runtime via SetNotificationsEnabled.
	NotificationsEnabled bool
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		RadiusKm:             1.0,
		RecordLimit:          50,
		StalenessWindow:      time.Hour,
		FeedThrottle:         10 * time.Second,
		UIThrottle:           2 * time.Second,
		NotificationsEnabled: true,
	}
}
