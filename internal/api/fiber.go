// Package api assembles the Fiber application serving the control surface.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/os2mo/orggatekeeper/restapi"
)

// NewFiberApp creates and configures the Fiber app with the control surface
// routes.
func NewFiberApp(deps restapi.Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "orggatekeeper API v1.0",
		ReadTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	restapi.SetupRoutes(app, deps)

	return app
}
