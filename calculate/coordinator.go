package calculate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/os2mo/orggatekeeper/internal/metrics"
	"github.com/os2mo/orggatekeeper/mo"
)

// Coordinator translates external stimuli into per-unit recalculations. All
// multi-unit fan-out runs with bounded concurrency so bulk sweeps cannot
// overwhelm the registry.
type Coordinator struct {
	mo      Facade
	updater *Updater
	limit   int
	log     *zap.Logger
}

// NewCoordinator builds a coordinator. limit caps how many units are
// recalculated concurrently.
func NewCoordinator(facade Facade, updater *Updater, limit int, log *zap.Logger) *Coordinator {
	return &Coordinator{mo: facade, updater: updater, limit: limit, log: log}
}

// UpdateUnits recalculates every given unit. Units that vanished before
// processing are logged and skipped; each per-unit update is independently
// idempotent, so ordering between siblings does not matter.
func (c *Coordinator) UpdateUnits(ctx context.Context, unitUUIDs []uuid.UUID) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(c.limit)
	for _, unitUUID := range unitUUIDs {
		unitUUID := unitUUID
		group.Go(func() error {
			changed, err := c.updater.UpdateLineManagement(ctx, unitUUID)
			if err != nil {
				if errors.Is(err, mo.ErrNotFound) {
					c.log.Info("No org unit found, skipping",
						zap.String("uuid", unitUUID.String()))
					return nil
				}
				return fmt.Errorf("recalculating org unit %s: %w", unitUUID, err)
			}
			metrics.RecordUpdate(changed)
			return nil
		})
	}
	return group.Wait()
}

// HandleOrgUnitEvent recalculates one unit after a change to the unit itself
// or to one of its IT-accounts.
func (c *Coordinator) HandleOrgUnitEvent(ctx context.Context, unitUUID uuid.UUID) error {
	c.log.Info("Changes to org unit or its it-accounts",
		zap.String("uuid", unitUUID.String()))
	return c.UpdateUnits(ctx, []uuid.UUID{unitUUID})
}

// HandleEngagementEvent recalculates the units owning a changed engagement.
// A vanished engagement or an empty unit set is a skip, not an error.
func (c *Coordinator) HandleEngagementEvent(ctx context.Context, engagementUUID uuid.UUID) error {
	units, err := c.mo.FetchOrgUnitsForEngagement(ctx, engagementUUID)
	if err != nil {
		if errors.Is(err, mo.ErrNotFound) {
			c.log.Debug("Engagement not found, skipping",
				zap.String("uuid", engagementUUID.String()))
			return nil
		}
		return err
	}
	if len(units) == 0 {
		return nil
	}
	c.log.Info("Changes to engagement, checking org units",
		zap.Int("org_units", len(units)))
	return c.UpdateUnits(ctx, units)
}

// HandleAssociationEvent recalculates the units owning a changed association.
func (c *Coordinator) HandleAssociationEvent(ctx context.Context, associationUUID uuid.UUID) error {
	units, err := c.mo.FetchOrgUnitsForAssociation(ctx, associationUUID)
	if err != nil {
		if errors.Is(err, mo.ErrNotFound) {
			c.log.Debug("Association not found, skipping",
				zap.String("uuid", associationUUID.String()))
			return nil
		}
		return err
	}
	if len(units) == 0 {
		return nil
	}
	c.log.Info("Changes to association, checking org units",
		zap.Int("org_units", len(units)))
	return c.UpdateUnits(ctx, units)
}

// UpdateAll recalculates every unit in the registry.
func (c *Coordinator) UpdateAll(ctx context.Context) error {
	unitUUIDs, err := c.mo.FetchAllOrgUnitUUIDs(ctx)
	if err != nil {
		return err
	}
	c.log.Info("Recalculating all org units", zap.Int("org_units", len(unitUUIDs)))
	return c.UpdateUnits(ctx, unitUUIDs)
}

// UpdateMissing recalculates units that have no hierarchy classification set.
func (c *Coordinator) UpdateMissing(ctx context.Context) error {
	unitUUIDs, err := c.mo.FetchOrgUnitsMissingHierarchy(ctx)
	if err != nil {
		return err
	}
	c.log.Info("Recalculating org units with no hierarchy", zap.Int("org_units", len(unitUUIDs)))
	return c.UpdateUnits(ctx, unitUUIDs)
}
