package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-nearby/pkg/geo"
	"github.com/teslashibe/go-nearby/pkg/presence"
	"github.com/teslashibe/go-nearby/pkg/store"
)

// Errors returned by Start.
var (
	ErrSessionActive = errors.New("monitor: session already active")
	ErrInvalidRole   = errors.New("monitor: invalid role")
	ErrNoDestination = errors.New("monitor: destination required")
)

// cleanupTimeout bounds the best-effort "leave" removal so teardown
// never hangs the caller.
const cleanupTimeout = 3 * time.Second

// Status is the controller's lifecycle state. Offline overlays
// connectivity on a live session; the session identity is retained.
type Status int

const (
	StatusIdle Status = iota
	StatusStarting
	StatusMonitoring
	StatusStopping
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarting:
		return "starting"
	case StatusMonitoring:
		return "monitoring"
	case StatusStopping:
		return "stopping"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Session identifies one monitoring session: who is observing, as
// which role, toward which destination, and at what radius.
type Session struct {
	ObserverID  string
	Role        presence.Role
	Destination string
	RadiusKm    float64
}

// Controller orchestrates the monitoring lifecycle. It owns both feed
// subscribers, both entity caches, the throttles and the notified set;
// no other component holds a subscription handle past Stop.
//
// All state mutation happens under one mutex (single-writer
// discipline). Snapshots are immutable once published, counts are
// computed from snapshot references, and callbacks fire outside the
// lock. In-flight pushes carry the generation at subscribe time and
// are discarded once it no longer matches.
type Controller struct {
	cfg      Config
	store    store.Store
	notifier Notifier
	log      *slog.Logger

	// OnCounts is invoked with fresh nearby counts, gated by the UI
	// throttle. Set before Start.
	OnCounts func(primary, secondary int)

	// OnFeedError is invoked when a feed subscription fails fatally.
	// The engine does not retry; the caller decides whether to
	// restart. Set before Start.
	OnFeedError func(feedPath string, err error)

	mu      sync.Mutex
	status  Status
	session Session
	online  bool
	gen     uint64

	primary   *feedSubscriber
	secondary *feedSubscriber

	primaryCache      *presence.Cache
	secondaryCache    *presence.Cache
	primaryThrottle   *presence.Throttle
	secondaryThrottle *presence.Throttle
	uiThrottle        *presence.Throttle

	notified   map[string]struct{}
	prevNearby map[string]struct{}

	observer      geo.Coordinate
	hasObserver   bool
	radiusKm      float64
	notifications bool
	counts        Counts
}

// NewController creates a controller over the given presence store and
// notifier. The controller assumes connectivity until told otherwise
// via SetOnline.
func NewController(cfg Config, st store.Store, notifier Notifier, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:               cfg,
		store:             st,
		notifier:          notifier,
		log:               logger.With("component", "monitor"),
		online:            true,
		primaryCache:      presence.NewCache(),
		secondaryCache:    presence.NewCache(),
		primaryThrottle:   presence.NewThrottle(cfg.FeedThrottle),
		secondaryThrottle: presence.NewThrottle(cfg.FeedThrottle),
		uiThrottle:        presence.NewThrottle(cfg.UIThrottle),
		notified:          make(map[string]struct{}),
		prevNearby:        make(map[string]struct{}),
		radiusKm:          cfg.RadiusKm,
		notifications:     cfg.NotificationsEnabled,
	}
}

// Start begins a monitoring session. A second Start while a session is
// starting or monitoring is rejected with ErrSessionActive so that
// overlapping subscriptions can never double-count entities. When
// connectivity is down the session moves straight to Offline and
// subscriptions are deferred until it returns.
func (c *Controller) Start(s Session) error {
	if !s.Role.Valid() {
		return ErrInvalidRole
	}
	if s.Destination == "" {
		return ErrNoDestination
	}
	if s.RadiusKm <= 0 {
		s.RadiusKm = c.cfg.RadiusKm
	}

	c.mu.Lock()
	if c.status == StatusStarting || c.status == StatusMonitoring {
		c.log.Warn("start ignored: session already active",
			"status", c.status.String(), "destination", c.session.Destination)
		c.mu.Unlock()
		return ErrSessionActive
	}

	c.session = s
	c.radiusKm = s.RadiusKm
	c.gen++
	gen := c.gen

	// A start is a full restart: caches, notified set and throttles
	// all reset. A resume after connectivity loss does none of this.
	c.primaryCache.Clear()
	c.secondaryCache.Clear()
	c.primaryThrottle.Reset()
	c.secondaryThrottle.Reset()
	c.uiThrottle.Reset()
	c.notified = make(map[string]struct{})
	c.prevNearby = make(map[string]struct{})
	c.counts = Counts{}

	if !c.online {
		c.status = StatusOffline
		c.mu.Unlock()
		c.log.Info("start deferred: offline", "destination", s.Destination)
		return nil
	}

	c.status = StatusStarting
	c.mu.Unlock()

	c.log.Info("monitoring starting",
		"observer", s.ObserverID, "role", string(s.Role),
		"destination", s.Destination, "radius_km", s.RadiusKm)
	return c.attach(gen)
}

// attach subscribes both feeds for the generation. If the session was
// stopped or superseded while attaching, the fresh subscriptions are
// closed and discarded.
func (c *Controller) attach(gen uint64) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	s := c.session
	primary := newFeedSubscriber(
		presence.FeedKey{Role: s.Role, Destination: s.Destination},
		s.ObserverID, c.cfg, c.primaryThrottle, c.primaryCache, c.log)
	secondary := newFeedSubscriber(
		presence.FeedKey{Role: s.Role.Complement(), Destination: s.Destination},
		s.ObserverID, c.cfg, c.secondaryThrottle, c.secondaryCache, c.log)
	c.mu.Unlock()

	if err := primary.attach(context.Background(), c.store,
		func(records []store.Record) { c.handlePush(primary, gen, records) },
		func(err error) { c.handleFeedError(primary, gen, err) },
	); err != nil {
		c.abortAttach(gen)
		return fmt.Errorf("attach %s: %w", primary.key.Path(), err)
	}

	if err := secondary.attach(context.Background(), c.store,
		func(records []store.Record) { c.handlePush(secondary, gen, records) },
		func(err error) { c.handleFeedError(secondary, gen, err) },
	); err != nil {
		primary.detach()
		c.abortAttach(gen)
		return fmt.Errorf("attach %s: %w", secondary.key.Path(), err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		primary.detach()
		secondary.detach()
		return nil
	}
	c.primary = primary
	c.secondary = secondary
	c.status = StatusMonitoring
	c.mu.Unlock()

	c.log.Info("monitoring active", "destination", c.session.Destination)
	return nil
}

func (c *Controller) abortAttach(gen uint64) {
	c.mu.Lock()
	if c.gen == gen {
		c.status = StatusIdle
	}
	c.mu.Unlock()
}

// handlePush runs on the store's delivery goroutine for every raw
// push. Pushes from a superseded generation are discarded: a detach or
// stop that races a push in flight wins.
func (c *Controller) handlePush(f *feedSubscriber, gen uint64, records []store.Record) {
	now := time.Now()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	_, changed := f.ingest(records, now)
	if !changed {
		c.mu.Unlock()
		return
	}
	emit := c.recomputeLocked(now)
	c.mu.Unlock()

	emit()
}

func (c *Controller) handleFeedError(f *feedSubscriber, gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	onErr := c.OnFeedError
	c.mu.Unlock()

	c.log.Error("presence feed failed", "feed", f.key.Path(), "error", err)
	if onErr != nil {
		onErr(f.key.Path(), err)
	}
}

// recomputeLocked recalculates nearby counts and the notification fire
// set from the current caches. Caller holds c.mu; the returned func
// performs the callback emissions and must be called after unlocking.
func (c *Controller) recomputeLocked(now time.Time) func() {
	if !c.hasObserver {
		return func() {}
	}

	observer := c.observer
	radius := c.radiusKm
	counts := NearbyCounts(observer, c.primaryCache.Current(), c.secondaryCache.Current(), radius)
	c.counts = counts

	nearbyNow := NearbyIDs(observer, c.secondaryCache.Current(), radius)
	var candidates []string
	for id := range nearbyNow {
		if _, seen := c.prevNearby[id]; !seen {
			candidates = append(candidates, id)
		}
	}
	c.prevNearby = nearbyNow

	fire := decideNotifications(candidates, c.notified, c.notifications)
	emitCounts := c.uiThrottle.Accept(now)

	notifier := c.notifier
	onCounts := c.OnCounts
	return func() {
		if len(fire) > 0 && notifier != nil {
			notifier.NotifyNearby(fire)
		}
		if emitCounts && onCounts != nil {
			onCounts(counts.Primary, counts.Secondary)
		}
	}
}

// SetLocation updates the observer position and recomputes. Invalid
// coordinates are rejected, never stored.
func (c *Controller) SetLocation(pos geo.Coordinate) {
	if !pos.Valid() {
		c.log.Warn("ignoring invalid observer location", "lat", pos.Lat, "lon", pos.Lon)
		return
	}

	c.mu.Lock()
	c.observer = pos
	c.hasObserver = true
	emit := c.recomputeLocked(time.Now())
	c.mu.Unlock()

	emit()
}

// SetRadius changes the nearby radius for the running session and
// recomputes. Non-positive values are ignored.
func (c *Controller) SetRadius(radiusKm float64) {
	if radiusKm <= 0 {
		return
	}

	c.mu.Lock()
	c.radiusKm = radiusKm
	emit := c.recomputeLocked(time.Now())
	c.mu.Unlock()

	emit()
}

// SetNotificationsEnabled toggles nearby alerts. Disabling does not
// clear the notified set; re-enabling will not re-fire ids already
// alerted this session.
func (c *Controller) SetNotificationsEnabled(enabled bool) {
	c.mu.Lock()
	c.notifications = enabled
	c.mu.Unlock()
}

// SetOnline feeds the connectivity signal. Going offline while
// monitoring pauses the session: subscriptions detach but caches and
// the notified set are retained. Coming back online resumes it, which
// is not a restart: nothing already accumulated is cleared.
func (c *Controller) SetOnline(online bool) {
	c.mu.Lock()
	if online == c.online {
		c.mu.Unlock()
		return
	}
	c.online = online

	if !online {
		if c.status != StatusMonitoring && c.status != StatusStarting {
			c.mu.Unlock()
			return
		}
		c.gen++
		primary, secondary := c.primary, c.secondary
		c.primary, c.secondary = nil, nil
		c.status = StatusOffline
		c.mu.Unlock()

		if primary != nil {
			primary.detach()
		}
		if secondary != nil {
			secondary.detach()
		}
		c.log.Info("connectivity lost: monitoring paused")
		return
	}

	if c.status != StatusOffline {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.status = StatusStarting
	c.mu.Unlock()

	c.log.Info("connectivity restored: resuming monitoring")
	if err := c.attach(gen); err != nil {
		c.log.Error("resume failed", "error", err)
	}
}

// Stop ends the session: detaches both subscriptions, clears both
// caches and returns to Idle. No-op when already Idle; safe to call
// repeatedly and concurrently with an in-flight Start, whose late
// subscriptions are discarded by the generation check.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.status == StatusIdle {
		c.mu.Unlock()
		return
	}
	c.status = StatusStopping
	c.gen++
	primary, secondary := c.primary, c.secondary
	c.primary, c.secondary = nil, nil
	c.primaryCache.Clear()
	c.secondaryCache.Clear()
	c.prevNearby = make(map[string]struct{})
	c.counts = Counts{}
	c.status = StatusIdle
	c.mu.Unlock()

	if primary != nil {
		primary.detach()
	}
	if secondary != nil {
		secondary.detach()
	}
	c.log.Info("monitoring stopped")
}

// Cleanup is the terminal, idempotent teardown for when the observer's
// context ends. It always stops the session and then best-effort
// removes the observer's own published record (the "leave" signal)
// with a bounded timeout; a failed removal is logged, never returned.
func (c *Controller) Cleanup(ctx context.Context) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	c.Stop()

	if s.ObserverID == "" {
		return
	}
	path := presence.FeedKey{Role: s.Role, Destination: s.Destination}.Path()

	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()
	if err := c.store.Remove(ctx, path, s.ObserverID); err != nil {
		c.log.Warn("failed to remove own presence record", "path", path, "error", err)
		return
	}
	c.log.Info("left presence feed", "path", path)
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Counts returns the latest computed nearby counts.
func (c *Controller) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// CurrentSession returns the active session identity.
func (c *Controller) CurrentSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}
