// Package restapi provides the router for the HTTP control surface.
package restapi

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/restapi/modules/health"
	"github.com/os2mo/orggatekeeper/restapi/modules/trigger"
)

// Deps carries everything the control surface needs.
type Deps struct {
	Coordinator   trigger.Coordinator
	Checks        map[string]health.Check
	Log           *zap.Logger
	ExposeMetrics bool
}

// SetupRoutes configures the control surface routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"name": "orggatekeeper"})
	})

	app.Post("/trigger/all", trigger.All(deps.Coordinator, deps.Log))
	app.Post("/trigger/missing", trigger.Missing(deps.Coordinator, deps.Log))
	app.Post("/trigger/uuid/:uuid", trigger.Unit(deps.Coordinator, deps.Log))

	app.Get("/health/live", health.Live())
	app.Get("/health/ready", health.Ready(deps.Checks, deps.Log))

	if deps.ExposeMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
}
