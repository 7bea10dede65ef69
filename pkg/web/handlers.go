package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-nearby/pkg/hub"
)

// handleStatus returns the current session state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()
	return c.JSON(state)
}

// handleGetAlerts returns the buffered nearby alerts
func (s *Server) handleGetAlerts(c *fiber.Ctx) error {
	s.alertsMu.RLock()
	alerts := make([]AlertEntry, len(s.alerts))
	copy(alerts, s.alerts)
	s.alertsMu.RUnlock()
	return c.JSON(alerts)
}

// handleStatusWS streams session state updates
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	client.Run()
}

// handleAlertsWS streams nearby alerts
func (s *Server) handleAlertsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.alertHub, conn)
	client.Run()
}
