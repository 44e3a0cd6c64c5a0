package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/storage/models"
	"github.com/riskassess/backend/pkg/logger"
)

type ArchiveReader interface {
	ListPredictions(ctx context.Context, sessionID string, limit int) ([]models.PredictionRecord, error)
}

type CounterReader interface {
	GetMetric(ctx context.Context, name string) (int64, error)
}

// ArchiveHandler serves longitudinal data that outlives sessions. Either
// dependency may be nil when its backend is disabled.
type ArchiveHandler struct {
	archive ArchiveReader
	counter CounterReader
}

func NewArchiveHandler(archive ArchiveReader, counter CounterReader) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		counter: counter,
	}
}

type archivedPrediction struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	OverallRisk     float64         `json:"overall_risk"`
	RiskLevel       string          `json:"risk_level"`
	SafetyStatus    string          `json:"safety_status"`
	Attributes      json.RawMessage `json:"attributes"`
	Result          json.RawMessage `json:"result"`
	LatencyMS       int             `json:"latency_ms"`
	CreatedAt       time.Time       `json:"created_at"`
	FeedbackRating  int             `json:"feedback_rating,omitempty"`
	FeedbackComment string          `json:"feedback_comment,omitempty"`
}

func (h *ArchiveHandler) ListPredictions(c *fiber.Ctx) error {
	if h.archive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Archive is disabled",
		})
	}

	sessionID := c.Query("session_id")
	limit := c.QueryInt("limit", 0)

	records, err := h.archive.ListPredictions(c.UserContext(), sessionID, limit)
	if err != nil {
		logger.Error("Failed to list archived predictions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read archive",
		})
	}

	out := make([]archivedPrediction, 0, len(records))
	for _, r := range records {
		out = append(out, archivedPrediction{
			ID:              r.ID,
			SessionID:       r.SessionID,
			OverallRisk:     r.OverallRisk,
			RiskLevel:       r.RiskLevel,
			SafetyStatus:    r.SafetyStatus,
			Attributes:      rawOrNull(r.Attributes),
			Result:          rawOrNull(r.Result),
			LatencyMS:       r.LatencyMS,
			CreatedAt:       r.CreatedAt,
			FeedbackRating:  r.FeedbackRating,
			FeedbackComment: r.FeedbackComment,
		})
	}

	return c.JSON(fiber.Map{
		"predictions": out,
		"count":       len(out),
	})
}

func (h *ArchiveHandler) Stats(c *fiber.Ctx) error {
	if h.counter == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Shared counters are disabled",
		})
	}

	total, err := h.counter.GetMetric(c.UserContext(), "assessments")
	if err != nil {
		logger.Error("Failed to read counter", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read counters",
		})
	}

	return c.JSON(fiber.Map{
		"assessments": total,
	})
}

func rawOrNull(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}
