package calculate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/internal/config"
	"github.com/os2mo/orggatekeeper/model"
)

// Updater is the reconciliation driver: it recalculates a single unit and
// writes back only when the persisted class actually differs.
type Updater struct {
	mo       Facade
	engine   *Engine
	settings *config.Settings
	orgUUID  uuid.UUID
	log      *zap.Logger

	now func() time.Time
}

// NewUpdater builds an updater. orgUUID identifies the organisation root
// container; units parented directly on it need the parent cleared in edits.
func NewUpdater(mo Facade, engine *Engine, settings *config.Settings, orgUUID uuid.UUID, log *zap.Logger) *Updater {
	return &Updater{
		mo:       mo,
		engine:   engine,
		settings: settings,
		orgUUID:  orgUUID,
		log:      log,
		now:      time.Now,
	}
}

// UpdateLineManagement recalculates the hierarchy classification of one unit.
// It returns whether this unit itself changed; ancestors recalculated along
// the way do not influence the return value.
//
// The comparison is by class UUID, not category: pointing two category keys
// at the same class merges them for write-suppression purposes.
func (u *Updater) UpdateLineManagement(ctx context.Context, unitUUID uuid.UUID) (bool, error) {
	category, err := u.engine.Classify(ctx, unitUUID)
	if err != nil {
		return false, err
	}
	classUUID, err := u.mo.GetClassUUID(ctx, category)
	if err != nil {
		return false, err
	}

	unit, err := u.mo.FetchOrgUnit(ctx, unitUUID)
	if err != nil {
		return false, err
	}

	if unit.HierarchyUUID != nil && *unit.HierarchyUUID == classUUID {
		u.log.Debug("Not updating org_unit_hierarchy, already good",
			zap.String("uuid", unitUUID.String()))
		return false, nil
	}

	edit := model.OrgUnitEdit{
		UUID:          unitUUID,
		HierarchyUUID: classUUID,
		Validity:      model.Validity{From: u.now()},
		ClearParent:   unit.IsRootUnit(u.orgUUID),
	}

	if u.settings.DryRun {
		u.log.Info("dry-run: would have sent edit payload",
			zap.String("uuid", unitUUID.String()),
			zap.String("category", string(category)),
			zap.String("class_uuid", classUUID.String()))
		return true, nil
	}

	u.log.Info("Editing organisation unit",
		zap.String("uuid", unitUUID.String()),
		zap.String("category", string(category)),
		zap.String("class_uuid", classUUID.String()))
	if err := u.mo.EditOrgUnitHierarchy(ctx, edit); err != nil {
		return false, fmt.Errorf("editing org unit %s: %w", unitUUID, err)
	}

	// This unit's change can flip an ancestor's child-based classification,
	// so recalculate upward after the write has landed. The organisation root
	// itself is not a unit and is never recalculated.
	if unit.ParentUUID != nil && *unit.ParentUUID != u.orgUUID {
		if _, err := u.UpdateLineManagement(ctx, *unit.ParentUUID); err != nil {
			return true, fmt.Errorf("recalculating parent %s: %w", *unit.ParentUUID, err)
		}
	}
	return true, nil
}
