// presence-sim publishes a population of fake moving entities into the
// presence store, for demoing and load-testing the monitor end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-nearby/internal/config"
	"github.com/teslashibe/go-nearby/internal/log"
	"github.com/teslashibe/go-nearby/pkg/presence"
	"github.com/teslashibe/go-nearby/pkg/store"
)

// stepDegrees is the maximum random-walk step per tick, ~100m.
const stepDegrees = 0.001

func main() {
	role := flag.String("role", "hitchhiker", "Simulated role: driver or hitchhiker")
	destination := flag.String("dest", "", "Destination name (or set DESTINATION env)")
	count := flag.Int("count", 5, "Number of simulated entities")
	centerLat := flag.Float64("lat", 38.7223, "Walk center latitude")
	centerLon := flag.Float64("lon", -9.1393, "Walk center longitude")
	interval := flag.Duration("interval", 5*time.Second, "Publish interval")
	redisAddr := flag.String("redis", config.DefaultRedisAddr, "Redis address (or set REDIS_ADDR env)")
	flag.Parse()

	log.Init("info")

	dest := *destination
	if dest == "" {
		dest = config.DestinationRequired()
	}
	r := presence.Role(*role)
	if !r.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", *role)
		os.Exit(1)
	}
	path := presence.FeedKey{Role: r, Destination: dest}.Path()

	st, err := store.NewRedisStore(config.RedisAddr(*redisAddr), log.L())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to presence store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Removing simulated entities...")
		cancel()
	}()

	fmt.Printf("🚶 Simulating %d %ss around (%.4f, %.4f) → %s\n",
		*count, *role, *centerLat, *centerLon, path)

	// Seed the walkers near the center
	type walker struct {
		id       string
		lat, lon float64
	}
	walkers := make([]walker, *count)
	for i := range walkers {
		walkers[i] = walker{
			id:  uuid.NewString(),
			lat: *centerLat + (rand.Float64()-0.5)*0.02,
			lon: *centerLon + (rand.Float64()-0.5)*0.02,
		}
	}

	publish := func() {
		for i := range walkers {
			w := &walkers[i]
			w.lat += (rand.Float64() - 0.5) * stepDegrees
			w.lon += (rand.Float64() - 0.5) * stepDegrees
			rec := store.Record{
				ID:        w.id,
				Latitude:  w.lat,
				Longitude: w.lon,
				Timestamp: time.Now().UnixMilli(),
			}
			if err := st.Publish(ctx, path, rec); err != nil && ctx.Err() == nil {
				log.Warn("publish failed", "id", w.id, "error", err)
			}
		}
	}

	publish()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Leave signals for every walker, bounded per entity
			for _, w := range walkers {
				rmCtx, rmCancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := st.Remove(rmCtx, path, w.id); err != nil {
					log.Warn("remove failed", "id", w.id, "error", err)
				}
				rmCancel()
			}
			fmt.Println("👋 Done")
			return
		case <-ticker.C:
			publish()
		}
	}
}
