package web

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/studyeyes/go-tracker/pkg/alert"
	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/tracking"
)

// StartRequest is the body for POST /api/tracking/start. SessionID is
// optional; one is generated when absent.
type StartRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the current session snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if err := s.ctrl.StartTracking(req.SessionID, req.Token); err != nil {
		return controlError(c, err)
	}
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.ctrl.StopTracking(); err != nil {
		return controlError(c, err)
	}
	return c.JSON(s.ctrl.State())
}

func (s *Server) handlePause(c *fiber.Ctx) error {
	if err := s.ctrl.PauseTracking(); err != nil {
		return controlError(c, err)
	}
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleResume(c *fiber.Ctx) error {
	if err := s.ctrl.ResumeTracking(); err != nil {
		return controlError(c, err)
	}
	return c.JSON(s.ctrl.State())
}

// handleGetAlerts returns the retained alerts for a session
// (?session_id=..., defaults to the active session).
func (s *Server) handleGetAlerts(c *fiber.Ctx) error {
	if s.alerts == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = s.ctrl.State().SessionID
	}
	alerts := s.alerts.Recent(sessionID)
	if alerts == nil {
		// Encode as [] rather than null.
		alerts = []alert.Alert{}
	}
	return c.JSON(alerts)
}

// handleClearAlerts discards retained alerts for a session.
func (s *Server) handleClearAlerts(c *fiber.Ctx) error {
	if s.alerts == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = s.ctrl.State().SessionID
	}
	s.alerts.Clear(sessionID)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleEventsWS streams every pipeline event to the client as JSON.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	cl := newClient(s.events, conn)

	// Seed the stream with the current session state so a late joiner
	// does not start blind.
	seed := Event{Topic: string(bus.TopicSession), At: time.Now(), Data: s.ctrl.State()}
	if data, err := json.Marshal(seed); err == nil {
		cl.send <- data
	}

	cl.run()
}

// controlError maps pipeline errors to HTTP statuses: transition rejections
// are client errors, everything else is a gateway problem.
func controlError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadGateway
	switch {
	case errors.Is(err, tracking.ErrInvalidTransition),
		errors.Is(err, tracking.ErrSessionActive):
		status = fiber.StatusConflict
	case tracking.IsNotConnected(err):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
