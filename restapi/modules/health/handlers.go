// Package health provides the liveness and readiness probe handlers.
package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Check reports whether one upstream dependency is ready.
type Check func(ctx context.Context) bool

// Live answers 204 unconditionally; the process serving it is alive.
func Live() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Ready aggregates the given checks into a single readiness signal. A check
// that fails or panics turns into 503; the probe itself never crashes.
func Ready(checks map[string]Check, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ready := true
		for name, check := range checks {
			if !runCheck(check) {
				log.Warn("Readiness check failed", zap.String("check", name))
				ready = false
			}
		}
		if !ready {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func runCheck(check Check) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return check(ctx)
}
