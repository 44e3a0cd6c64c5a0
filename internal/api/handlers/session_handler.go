package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/middleware/validation"
	"github.com/riskassess/backend/internal/patient"
	"github.com/riskassess/backend/internal/session"
	"github.com/riskassess/backend/pkg/logger"
)

type SessionHandler struct {
	registry *session.Registry
}

func NewSessionHandler(registry *session.Registry) *SessionHandler {
	return &SessionHandler{
		registry: registry,
	}
}

func (h *SessionHandler) session(c *fiber.Ctx) (*session.Session, error) {
	return h.registry.Get(c.Params("id"))
}

func (h *SessionHandler) DefaultAttributes(c *fiber.Ctx) error {
	return c.JSON(patient.Default())
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	s := h.registry.Create()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": s.ID,
		"created_at": s.CreatedAt,
		"attributes": s.Attributes(),
	})
}

// DeleteSession is the logout path: the session and its history are dropped.
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if !h.registry.Remove(id) {
		return respondError(c, session.ErrNotFound)
	}

	logger.Info("Session closed", zap.String("session_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) GetAttributes(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.Attributes())
}

func (h *SessionHandler) Submit(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	attrs, ok := c.Locals(validation.LocalsAttributes).(patient.Attributes)
	if !ok {
		attrs, err = validation.ParseAttributes(c.Body())
		if err != nil {
			return respondError(c, err)
		}
	}

	result, err := s.Submit(c.UserContext(), attrs)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

func (h *SessionHandler) History(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"predictions": s.History(),
	})
}

func (h *SessionHandler) Current(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	result, ok := s.Current()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No result is currently displayed",
		})
	}
	return c.JSON(result)
}

func (h *SessionHandler) SelectCurrent(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := s.Select(c.Params("pid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// ClearCurrent starts a new analysis; history is kept.
func (h *SessionHandler) ClearCurrent(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	s.ClearCurrent()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) Feedback(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	req, ok := c.Locals(validation.LocalsFeedback).(validation.FeedbackRequest)
	if !ok {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	result, err := s.AttachFeedback(c.UserContext(), c.Params("pid"), req.Rating, req.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
