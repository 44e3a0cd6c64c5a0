package validation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/patient"
)

// Locals keys set for downstream handlers.
const (
	LocalsAttributes = "attributes"
	LocalsFeedback   = "feedback"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxBodySize         int
	MaxCommentLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1024 * 1024
	}
	if cfg.MaxCommentLength == 0 {
		cfg.MaxCommentLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if len(c.Body()) > cfg.MaxBodySize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body exceeds maximum size",
			})
		}

		path := strings.TrimSuffix(c.Path(), "/")

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/predictions") {
			attrs, err := ParseAttributes(c.Body())
			if err != nil {
				return respondInvalid(c, err)
			}
			c.Locals(LocalsAttributes, attrs)
		}

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/feedback") {
			var req FeedbackRequest
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if len(req.Comment) > cfg.MaxCommentLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Comment exceeds maximum length",
				})
			}

			if containsXSS(req.Comment) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid comment content",
				})
			}

			req.Comment = sanitizeString(req.Comment)
			c.Locals(LocalsFeedback, req)
		}

		return c.Next()
	}
}

// ParseAttributes merges a (partial) attribute document over the default
// template and checks the result.
func ParseAttributes(body []byte) (patient.Attributes, error) {
	attrs, err := patient.Merge(patient.Default(), body)
	if err != nil {
		return patient.Attributes{}, err
	}
	if err := attrs.Validate(); err != nil {
		return patient.Attributes{}, err
	}
	return attrs, nil
}

func respondInvalid(c *fiber.Ctx, err error) error {
	var verr *patient.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid JSON format",
	})
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
