package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, perMinute int) *fiber.App {
	rl := New(Config{MaxRequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func status(t *testing.T, app *fiber.App, sessionID string) int {
	req := httptest.NewRequest("GET", "/", nil)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRateLimiter_PerSession(t *testing.T) {
	app := newApp(t, 2)

	assert.Equal(t, fiber.StatusOK, status(t, app, "a"))
	assert.Equal(t, fiber.StatusOK, status(t, app, "a"))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, "a"))

	// another session has its own bucket
	assert.Equal(t, fiber.StatusOK, status(t, app, "b"))
}

func TestRateLimiter_FallsBackToIP(t *testing.T) {
	app := newApp(t, 1)

	assert.Equal(t, fiber.StatusOK, status(t, app, ""))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "a"))
}
