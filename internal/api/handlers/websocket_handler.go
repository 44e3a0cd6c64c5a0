package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/middleware/validation"
	"github.com/riskassess/backend/internal/session"
	"github.com/riskassess/backend/pkg/logger"
)

type WebSocketHandler struct {
	registry *session.Registry
}

func NewWebSocketHandler(registry *session.Registry) *WebSocketHandler {
	return &WebSocketHandler{
		registry: registry,
	}
}

type wsMessage struct {
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

// Upgrade rejects plain HTTP requests and unknown sessions before the
// handshake.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.registry.Get(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.Next()
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID := c.Params("id")
	logger.Info("WebSocket connection established", zap.String("session_id", sessionID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", sessionID))
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "submit" {
			continue
		}

		if err := h.submit(c, sessionID, msg.Attributes); err != nil {
			logger.Error("Failed to write WebSocket frame", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) submit(c *websocket.Conn, sessionID string, raw json.RawMessage) error {
	s, err := h.registry.Get(sessionID)
	if err != nil {
		return h.sendError(c, err)
	}

	attrs, err := validation.ParseAttributes(raw)
	if err != nil {
		return h.sendError(c, err)
	}

	if err := h.sendStatus(c, "Analyzing patient data..."); err != nil {
		return err
	}

	result, err := s.Submit(context.Background(), attrs)
	if err != nil {
		return h.sendError(c, err)
	}

	return c.WriteJSON(map[string]interface{}{
		"type":   "result",
		"result": result,
	})
}

func (h *WebSocketHandler) sendStatus(c *websocket.Conn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "status",
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, err error) error {
	_, body := errorBody(err)
	body["type"] = "error"
	return c.WriteJSON(body)
}
