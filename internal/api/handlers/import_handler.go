package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/importer"
	"github.com/riskassess/backend/internal/patient"
	"github.com/riskassess/backend/internal/session"
	"github.com/riskassess/backend/pkg/logger"
)

type ImportHandler struct {
	registry *session.Registry
}

func NewImportHandler(registry *session.Registry) *ImportHandler {
	return &ImportHandler{
		registry: registry,
	}
}

// ImportAttributes loads attributes from an uploaded .json or .csv file. An
// optional "attributes" form field carries the values currently in the form,
// which CSV cells overlay; without it the session's last attributes are used.
func (h *ImportHandler) ImportAttributes(c *fiber.Ctx) error {
	s, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A .json or .csv file is required in the 'file' field",
		})
	}

	current := s.Attributes()
	if raw := c.FormValue("attributes"); raw != "" {
		current, err = patient.Merge(current, []byte(raw))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid attributes field",
			})
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	attrs, err := importer.Import(fileHeader.Filename, file, current)
	if err != nil {
		logger.Warn("Attribute import failed",
			zap.String("session_id", s.ID),
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		if status, body := errorBody(err); status != fiber.StatusInternalServerError {
			return c.Status(status).JSON(body)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse uploaded file",
		})
	}

	if err := attrs.Validate(); err != nil {
		return respondError(c, err)
	}

	s.SetAttributes(attrs)

	logger.Info("Attributes imported",
		zap.String("session_id", s.ID),
		zap.String("filename", fileHeader.Filename),
	)

	return c.JSON(attrs)
}
