package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-nearby/internal/config"
	"github.com/teslashibe/go-nearby/internal/log"
	"github.com/teslashibe/go-nearby/pkg/geo"
	"github.com/teslashibe/go-nearby/pkg/monitor"
	"github.com/teslashibe/go-nearby/pkg/presence"
	"github.com/teslashibe/go-nearby/pkg/store"
	"github.com/teslashibe/go-nearby/pkg/web"
)

const (
	publishInterval   = 10 * time.Second
	connectivityEvery = 5 * time.Second
)

func main() {
	// Command line flags
	role := flag.String("role", "driver", "Observer role: driver or hitchhiker")
	destination := flag.String("dest", "", "Destination name (or set DESTINATION env)")
	radius := flag.Float64("radius", 1.0, "Nearby radius in kilometers")
	lat := flag.Float64("lat", 0, "Observer latitude")
	lon := flag.Float64("lon", 0, "Observer longitude")
	observerID := flag.String("id", "", "Observer id (random if empty)")
	redisAddr := flag.String("redis", config.DefaultRedisAddr, "Redis address (or set REDIS_ADDR env)")
	httpPort := flag.String("port", config.DefaultHTTPPort, "Dashboard port (or set HTTP_PORT env)")
	noNotify := flag.Bool("no-notify", false, "Disable nearby notifications")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	dest := *destination
	if dest == "" {
		dest = config.DestinationRequired()
	}

	id := *observerID
	if id == "" {
		id = uuid.NewString()
	}

	position := geo.Coordinate{Lat: *lat, Lon: *lon}
	if !position.Valid() {
		fmt.Fprintln(os.Stderr, "Error: invalid observer coordinates")
		os.Exit(1)
	}

	fmt.Println("📍 go-nearby Proximity Monitor")
	fmt.Printf("   Observer: %s (%s)\n", id, *role)
	fmt.Printf("   Destination: %s, radius %.1fkm\n", dest, *radius)
	fmt.Println()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	// Presence store: gateway if configured, Redis otherwise
	var st store.Store
	var redisStore *store.RedisStore
	if url := config.GatewayURL(); url != "" {
		st = store.NewGatewayStore(url, log.L())
		fmt.Printf("✅ Using presence gateway at %s\n", url)
	} else {
		var err error
		redisStore, err = store.NewRedisStore(config.RedisAddr(*redisAddr), log.L())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to presence store: %v\n", err)
			os.Exit(1)
		}
		st = redisStore
		fmt.Printf("✅ Connected to presence store at %s\n", config.RedisAddr(*redisAddr))
	}
	defer st.Close()

	// Dashboard
	dashboard := web.NewServer(config.HTTPPort(*httpPort))
	dashboard.StartAsync()

	// Engine
	cfg := monitor.DefaultConfig()
	cfg.RadiusKm = *radius
	cfg.NotificationsEnabled = !*noNotify

	notifier := monitor.NotifierFunc(func(ids []string) {
		fmt.Printf("🔔 %d new nearby: %v\n", len(ids), ids)
		dashboard.AddAlert(ids)
	})

	controller := monitor.NewController(cfg, st, notifier, log.L())
	controller.OnCounts = func(primary, secondary int) {
		dashboard.UpdateState(func(s *web.SessionState) {
			s.PrimaryCount = primary
			s.SecondaryCount = secondary
		})
	}
	controller.OnFeedError = func(feedPath string, err error) {
		log.Error("feed lost, restart required", "feed", feedPath, "error", err)
	}

	session := monitor.Session{
		ObserverID:  id,
		Role:        presence.Role(*role),
		Destination: dest,
		RadiusKm:    *radius,
	}
	if err := controller.Start(session); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start monitoring: %v\n", err)
		os.Exit(1)
	}
	controller.SetLocation(position)

	dashboard.UpdateState(func(s *web.SessionState) {
		s.Status = controller.Status().String()
		s.Online = true
		s.ObserverID = id
		s.Role = *role
		s.Destination = dest
		s.RadiusKm = *radius
	})

	// Publish our own presence so the opposite role can see us
	go publishLoop(ctx, st, session, position)

	// Connectivity watcher drives pause/resume (Redis store only)
	if redisStore != nil {
		go connectivityLoop(ctx, redisStore, controller, dashboard)
	}

	<-ctx.Done()

	// Bounded teardown: stop monitoring and leave the feed
	controller.Cleanup(context.Background())
	fmt.Println("👋 Goodbye!")
}

// publishLoop keeps the observer's own record fresh in its role feed.
func publishLoop(ctx context.Context, st store.Store, session monitor.Session, position geo.Coordinate) {
	path := presence.FeedKey{Role: session.Role, Destination: session.Destination}.Path()
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	publish := func() {
		rec := store.Record{
			ID:        session.ObserverID,
			Latitude:  position.Lat,
			Longitude: position.Lon,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := st.Publish(ctx, path, rec); err != nil && ctx.Err() == nil {
			log.Warn("failed to publish presence", "path", path, "error", err)
		}
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publish()
		}
	}
}

// connectivityLoop pings the store and feeds the online/offline signal
// into the controller.
func connectivityLoop(ctx context.Context, rs *store.RedisStore, controller *monitor.Controller, dashboard *web.Server) {
	ticker := time.NewTicker(connectivityEvery)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := rs.Ping(pingCtx)
			cancel()

			nowOnline := err == nil
			if nowOnline != online {
				online = nowOnline
				controller.SetOnline(online)
				dashboard.UpdateState(func(s *web.SessionState) {
					s.Online = online
					s.Status = controller.Status().String()
				})
			}
		}
	}
}
