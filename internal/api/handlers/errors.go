package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/assessment"
	"github.com/riskassess/backend/internal/history"
	"github.com/riskassess/backend/internal/importer"
	"github.com/riskassess/backend/internal/patient"
	"github.com/riskassess/backend/internal/session"
	"github.com/riskassess/backend/pkg/logger"
)

const KindBusy = "BUSY"

// errorBody is the JSON shape of every error response.
func errorBody(err error) (int, fiber.Map) {
	var classified *assessment.Error
	if errors.As(err, &classified) {
		body := fiber.Map{
			"error": classified.Message,
			"kind":  classified.Kind,
		}
		if classified.Hint != "" {
			body["hint"] = classified.Hint
		}
		return statusForKind(classified.Kind), body
	}

	var verr *patient.ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest, fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		}
	}

	switch {
	case errors.Is(err, session.ErrBusy):
		return fiber.StatusConflict, fiber.Map{
			"error": "An assessment is already running. Wait for it to finish.",
			"kind":  KindBusy,
		}
	case errors.Is(err, session.ErrNotFound):
		return fiber.StatusNotFound, fiber.Map{"error": "Session not found"}
	case errors.Is(err, history.ErrNotFound):
		return fiber.StatusNotFound, fiber.Map{"error": "Prediction not found"}
	case errors.Is(err, history.ErrInvalidRating):
		return fiber.StatusBadRequest, fiber.Map{"error": err.Error()}
	case errors.Is(err, importer.ErrUnsupportedFormat), errors.Is(err, importer.ErrNoDataRow):
		return fiber.StatusBadRequest, fiber.Map{"error": err.Error()}
	}

	return fiber.StatusInternalServerError, fiber.Map{"error": "Internal server error"}
}

func statusForKind(kind assessment.Kind) int {
	switch kind {
	case assessment.KindConfigMissing:
		return fiber.StatusServiceUnavailable
	case assessment.KindEmptyResponse, assessment.KindMalformedPayload, assessment.KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(body)
}
