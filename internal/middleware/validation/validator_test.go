package validation

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskassess/backend/internal/patient"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxCommentLength: 20}))

	app.Post("/sessions/:id/predictions", func(c *fiber.Ctx) error {
		return c.JSON(c.Locals(LocalsAttributes).(patient.Attributes))
	})
	app.Post("/sessions/:id/predictions/:pid/feedback", func(c *fiber.Ctx) error {
		return c.JSON(c.Locals(LocalsFeedback).(FeedbackRequest))
	})
	app.Post("/sessions", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) (int, map[string]any) {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestMiddleware_Submission(t *testing.T) {
	app := newApp()

	code, body := post(t, app, "/sessions/s1/predictions", "application/json", `{"glucose": 210, "gender": "Male"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, 210.0, body["glucose"])
	assert.Equal(t, "Male", body["gender"])
	assert.Equal(t, patient.Default().BMI, body["bmi"], "absent fields come from the template")
}

func TestMiddleware_SubmissionRejected(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "negative glucose", body: `{"glucose": -1}`, wantField: "glucose"},
		{name: "impossible age", body: `{"age": 400}`, wantField: "age"},
		{name: "unknown enum", body: `{"smokingHistory": "Sometimes"}`, wantField: "smokingHistory"},
		{name: "broken json", body: `{"glucose": `},
		{name: "wrong type", body: `{"glucose": "high"}`},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, app, "/sessions/s1/predictions", "application/json", tt.body)

			assert.Equal(t, fiber.StatusBadRequest, code)
			assert.NotEmpty(t, body["error"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
		})
	}
}

func TestMiddleware_Feedback(t *testing.T) {
	app := newApp()

	code, body := post(t, app, "/sessions/s1/predictions/p1/feedback", "application/json", `{"rating": 4, "comment": "  useful\u0000 "}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, 4.0, body["rating"])
	assert.Equal(t, "useful", body["comment"])

	code, _ = post(t, app, "/sessions/s1/predictions/p1/feedback", "application/json", `{"rating": 4, "comment": "<script>alert(1)</script>"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = post(t, app, "/sessions/s1/predictions/p1/feedback", "application/json", `{"rating": 4, "comment": "this comment is far too long"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestMiddleware_ContentType(t *testing.T) {
	app := newApp()

	code, _ := post(t, app, "/sessions", "text/plain", "hello")
	assert.Equal(t, fiber.StatusUnsupportedMediaType, code)

	code, _ = post(t, app, "/sessions", "", "")
	assert.Equal(t, fiber.StatusCreated, code)
}

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes(nil)
	require.NoError(t, err)
	assert.Equal(t, patient.Default(), attrs)

	_, err = ParseAttributes([]byte(`{"bmi": 150}`))
	var verr *patient.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "bmi", verr.Field)
}
