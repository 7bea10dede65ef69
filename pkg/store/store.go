// Package store defines the presence store boundary: a keyed,
// queryable, push-on-change data store addressed by feed path
// ("drivers/lisbon"). The engine only consumes this interface; the
// Redis and gateway implementations live alongside it, and tests
// substitute the Mock.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned when an operation is attempted on a
// closed store.
var ErrStoreClosed = errors.New("store: closed")

// Record is the wire representation of one presence report.
type Record struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// ObservedAt returns the record timestamp as a time.Time.
func (r Record) ObservedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Query constrains a subscription: records under Path, observed at or
// after Since, capped to the Limit most recent.
type Query struct {
	Path  string
	Since time.Time
	Limit int
}

// Subscription is a live feed attachment. Close is idempotent; closing
// an already-closed subscription is a no-op.
type Subscription interface {
	Close()
}

// Store is the presence store collaborator. Subscribe delivers the
// full current record set for the query on attach and again on every
// upstream change, on the store's own delivery goroutine. A fatal
// subscription failure is reported once via onError; the store does
// not retry.
type Store interface {
	Subscribe(ctx context.Context, q Query, onPush func([]Record), onError func(error)) (Subscription, error)
	Publish(ctx context.Context, path string, rec Record) error
	Remove(ctx context.Context, path, id string) error
	Close() error
}
