package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"fileshare/internal/service"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Files    service.FileService
	Sessions *session.Store
	// Health is checked by /health. The metadata store is the usual choice.
	Health Pinger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Sessions == nil {
		d.Sessions = NewSessionStore()
	}

	app.Get("/health", HealthCheck(d.Health))
	app.Get("/healthz", LivenessProbe())

	app.Get("/api/session", SessionToken(d.Sessions))

	app.Get("/files", ListFiles(d.Files))
	app.Post("/files", UploadFile(d.Files, d.Sessions))
	app.Get("/files/:id", GetFile(d.Files))
	app.Delete("/files/:id", RetireFile(d.Files, d.Sessions))
	// Form posts cannot send DELETE.
	app.Post("/files/:id/delete", RetireFile(d.Files, d.Sessions))
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Reports healthy when the metadata store answers within two seconds.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(p Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p == nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 while the process is up.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
