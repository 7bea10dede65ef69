// Package web provides a real-time dashboard for a monitoring session
package web

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-nearby/pkg/hub"
)

// SessionState represents the current monitoring session for the dashboard
type SessionState struct {
	Status         string  `json:"status"`
	Online         bool    `json:"online"`
	ObserverID     string  `json:"observer_id"`
	Role           string  `json:"role"`
	Destination    string  `json:"destination"`
	RadiusKm       float64 `json:"radius_km"`
	PrimaryCount   int     `json:"primary_count"`
	SecondaryCount int     `json:"secondary_count"`
}

// AlertEntry represents a nearby notification for the dashboard
type AlertEntry struct {
	Time string   `json:"time"`
	IDs  []string `json:"ids"`
}

// Server is the web dashboard server
type Server struct {
	app  *fiber.App
	port string

	// State
	state   SessionState
	stateMu sync.RWMutex

	// Alert buffer (last 100 entries)
	alerts   []AlertEntry
	alertsMu sync.RWMutex

	// Hubs for websocket broadcast (thread-safe!)
	statusHub *hub.Hub
	alertHub  *hub.Hub
}

// NewServer creates a new web dashboard server
func NewServer(port string) *Server {
	s := &Server{
		port:      port,
		alerts:    make([]AlertEntry, 0, 100),
		statusHub: hub.New("status"),
		alertHub:  hub.New("alerts"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Nearby Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/alerts", s.handleGetAlerts)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/alerts", websocket.New(s.handleAlertsWS))

	s.app = app
	return s
}

// Start starts the web server
func (s *Server) Start() error {
	fmt.Printf("🌐 Dashboard: http://localhost:%s\n", s.port)

	go s.statusHub.Run()
	go s.alertHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			fmt.Printf("⚠️  Web server error: %v\n", err)
		}
	}()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// UpdateState updates the session state and broadcasts to clients
func (s *Server) UpdateState(update func(*SessionState)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state // Copy for broadcast
	s.stateMu.Unlock()

	// Broadcast via hub (thread-safe!)
	s.statusHub.BroadcastJSON(state)
}

// AddAlert records a nearby notification and broadcasts to clients
func (s *Server) AddAlert(ids []string) {
	entry := AlertEntry{
		Time: time.Now().Format("15:04:05"),
		IDs:  ids,
	}

	s.alertsMu.Lock()
	s.alerts = append(s.alerts, entry)
	if len(s.alerts) > 100 {
		s.alerts = s.alerts[1:]
	}
	s.alertsMu.Unlock()

	// Broadcast via hub (thread-safe!)
	s.alertHub.BroadcastJSON(entry)
}
