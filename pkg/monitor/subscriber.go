package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-nearby/pkg/geo"
	"github.com/teslashibe/go-nearby/pkg/presence"
	"github.com/teslashibe/go-nearby/pkg/store"
)

// maxSkipLogsPerPush caps malformed-record logging so one bad push
// cannot flood the log.
const maxSkipLogsPerPush = 3

// feedSubscriber owns one live subscription to a presence feed and the
// decode → validate → throttle → cache pipeline for its pushes.
type feedSubscriber struct {
	key       presence.FeedKey
	excludeID string
	limit     int
	window    time.Duration
	throttle  *presence.Throttle
	cache     *presence.Cache
	log       *slog.Logger

	sub store.Subscription
}

func newFeedSubscriber(key presence.FeedKey, excludeID string, cfg Config, throttle *presence.Throttle, cache *presence.Cache, logger *slog.Logger) *feedSubscriber {
	return &feedSubscriber{
		key:       key,
		excludeID: excludeID,
		limit:     cfg.RecordLimit,
		window:    cfg.StalenessWindow,
		throttle:  throttle,
		cache:     cache,
		log:       logger.With("feed", key.Path()),
	}
}

// attach subscribes to the feed's path, constrained to the limit most
// recent records within the staleness window.
func (f *feedSubscriber) attach(ctx context.Context, st store.Store, onPush func([]store.Record), onError func(error)) error {
	q := store.Query{
		Path:  f.key.Path(),
		Since: time.Now().Add(-f.window),
		Limit: f.limit,
	}
	sub, err := st.Subscribe(ctx, q, onPush, onError)
	if err != nil {
		return err
	}
	f.sub = sub
	return nil
}

// detach closes the subscription. Idempotent; detaching a subscriber
// that was never attached is a no-op.
func (f *feedSubscriber) detach() {
	if f.sub != nil {
		f.sub.Close()
		f.sub = nil
	}
}

// ingest converts a raw push into a cache update and reports whether
// the snapshot changed. A push rejected by the feed throttle is
// dropped entirely; the next accepted push carries the full current
// truth. Malformed records are skipped with capped logging, stale
// records and the observer's own record are skipped silently.
func (f *feedSubscriber) ingest(records []store.Record, now time.Time) (presence.Snapshot, bool) {
	if !f.throttle.Accept(now) {
		return nil, false
	}

	cutoff := now.Add(-f.window)
	skipped := 0
	entities := make([]presence.Entity, 0, len(records))
	for _, rec := range records {
		if rec.ID == f.excludeID {
			continue
		}
		pos := geo.Coordinate{Lat: rec.Latitude, Lon: rec.Longitude}
		if rec.ID == "" || !pos.Valid() {
			skipped++
			if skipped <= maxSkipLogsPerPush {
				f.log.Warn("skipping malformed presence record",
					"id", rec.ID, "lat", rec.Latitude, "lon", rec.Longitude)
			}
			continue
		}
		observedAt := rec.ObservedAt()
		if observedAt.Before(cutoff) {
			continue
		}
		entities = append(entities, presence.Entity{
			ID:         rec.ID,
			Position:   pos,
			ObservedAt: observedAt,
		})
	}
	if skipped > maxSkipLogsPerPush {
		f.log.Warn("push contained more malformed records", "skipped", skipped)
	}

	return f.cache.Apply(entities)
}
