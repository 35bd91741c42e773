// Package trigger provides the manual recalculation endpoints.
package trigger

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator is the subset of the change-propagation coordinator the
// trigger endpoints drive.
type Coordinator interface {
	UpdateAll(ctx context.Context) error
	UpdateMissing(ctx context.Context) error
	UpdateUnits(ctx context.Context, unitUUIDs []uuid.UUID) error
}

// All starts a background recalculation of every org unit and answers 202.
// The sweep is best effort: every per-unit update is atomic, so interruption
// leaves the registry in a valid state.
func All(coordinator Coordinator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log.Info("Manually triggered recalculation of all org units")
		go func() {
			if err := coordinator.UpdateAll(context.Background()); err != nil {
				log.Error("Background recalculation failed", zap.Error(err))
			}
		}()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "Background job triggered",
		})
	}
}

// Missing starts a background sweep over units with no hierarchy set.
func Missing(coordinator Coordinator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log.Info("Manually triggered sweep for unclassified org units")
		go func() {
			if err := coordinator.UpdateMissing(context.Background()); err != nil {
				log.Error("Background sweep failed", zap.Error(err))
			}
		}()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "Background job triggered",
		})
	}
}

// Unit recalculates a single org unit synchronously.
func Unit(coordinator Coordinator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		unitUUID, err := uuid.Parse(c.Params("uuid"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid org unit uuid",
			})
		}

		log.Info("Manually triggered recalculation", zap.String("uuid", unitUUID.String()))
		if err := coordinator.UpdateUnits(c.UserContext(), []uuid.UUID{unitUUID}); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "OK"})
	}
}
