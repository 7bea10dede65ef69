package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis key layout per feed path:
//
//	presence:{path}        hash, field id -> JSON Record
//	presence:{path}:ts     sorted set, member id scored by timestamp ms
//	presence:{path}:events pub/sub channel, one message per change
type RedisStore struct {
	log *slog.Logger
	rdb *goredis.Client

	mu     sync.Mutex
	closed bool
}

// NewRedisStore connects to Redis at addr and verifies the connection
// with a ping.
func NewRedisStore(addr string, logger *slog.Logger) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		log: logger.With("component", "redis-store"),
		rdb: rdb,
	}, nil
}

// Ping verifies the Redis connection; used as the connectivity signal.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func recordsKey(path string) string { return "presence:" + path }
func timesKey(path string) string   { return "presence:" + path + ":ts" }
func eventsKey(path string) string  { return "presence:" + path + ":events" }

// Publish upserts the record under its feed path and signals the
// change to subscribers.
func (s *RedisStore) Publish(ctx context.Context, path string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, recordsKey(path), rec.ID, raw)
	pipe.ZAdd(ctx, timesKey(path), goredis.Z{Score: float64(rec.Timestamp), Member: rec.ID})
	pipe.Publish(ctx, eventsKey(path), rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", path, err)
	}
	return nil
}

// Remove deletes the record and signals the change. Removing an absent
// id is not an error.
func (s *RedisStore) Remove(ctx context.Context, path, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.HDel(ctx, recordsKey(path), id)
	pipe.ZRem(ctx, timesKey(path), id)
	pipe.Publish(ctx, eventsKey(path), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis remove %s/%s: %w", path, id, err)
	}
	return nil
}

// query fetches the Limit most recent records at or after Since,
// newest first.
func (s *RedisStore) query(ctx context.Context, q Query) ([]Record, error) {
	min := "-inf"
	if !q.Since.IsZero() {
		min = strconv.FormatInt(q.Since.UnixMilli(), 10)
	}

	rng := &goredis.ZRangeBy{Min: min, Max: "+inf"}
	if q.Limit > 0 {
		rng.Count = int64(q.Limit)
	}
	ids, err := s.rdb.ZRevRangeByScore(ctx, timesKey(q.Path), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range %s: %w", q.Path, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raws, err := s.rdb.HMGet(ctx, recordsKey(q.Path), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch %s: %w", q.Path, err)
	}

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue // removed between range and fetch
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.log.Warn("bad presence record payload", "path", q.Path, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Subscribe delivers the current record set immediately, then
// re-queries and delivers on every change event for the path.
func (s *RedisStore) Subscribe(ctx context.Context, q Query, onPush func([]Record), onError func(error)) (Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	pubsub := s.rdb.Subscribe(subCtx, eventsKey(q.Path))

	// Ensures the subscription actually started before the initial
	// query, so no change falls between the two.
	if _, err := pubsub.Receive(subCtx); err != nil {
		_ = pubsub.Close()
		cancel()
		return nil, fmt.Errorf("redis subscribe %s: %w", q.Path, err)
	}

	initial, err := s.query(subCtx, q)
	if err != nil {
		_ = pubsub.Close()
		cancel()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub, cancel: cancel}

	go func() {
		onPush(initial)

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					if subCtx.Err() == nil {
						onError(fmt.Errorf("redis subscription lost: %s", q.Path))
					}
					return
				}
				records, err := s.query(subCtx, q)
				if err != nil {
					if subCtx.Err() == nil {
						s.log.Warn("presence re-query failed", "path", q.Path, "error", err)
					}
					continue
				}
				onPush(records)
			}
		}
	}()

	return sub, nil
}

// Close releases the Redis connection. Active subscriptions end with
// their contexts.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rdb.Close()
}

type redisSubscription struct {
	pubsub *goredis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

func (s *redisSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
}

var _ Store = (*RedisStore)(nil)
