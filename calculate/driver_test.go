package calculate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/internal/config"
	"github.com/os2mo/orggatekeeper/mo"
	"github.com/os2mo/orggatekeeper/model"
)

func newTestUpdater(facade *fakeFacade, settings *config.Settings) *Updater {
	log := zap.NewNop()
	engine := NewEngine(facade, newTestSettings(settings), log)
	updater := NewUpdater(facade, engine, settings, facade.orgUUID, log)
	updater.now = func() time.Time {
		return time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return updater
}

func TestUpdateLineManagementWritesAndReports(t *testing.T) {
	topLevel := uuid.New()
	unitUUID := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.addUnit(topLevel, nil, "")
	facade.addUnit(unitUUID, &topLevel, "NY3-niveau")

	updater := newTestUpdater(facade, &config.Settings{
		LineManagementTopLevelUUIDs: []uuid.UUID{topLevel},
	})

	changed, err := updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.True(t, changed)

	// The unit and, via recursion, its parent both got written.
	assert.Equal(t, []uuid.UUID{unitUUID, topLevel}, facade.editedUnits())
	assert.Equal(t, facade.classes[model.CategoryLineManagement], facade.edits[0].HierarchyUUID)
	assert.Equal(t, updater.now(), facade.edits[0].Validity.From)
	assert.Nil(t, facade.edits[0].Validity.To)
}

func TestUpdateLineManagementIdempotent(t *testing.T) {
	topLevel := uuid.New()
	unitUUID := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.addUnit(topLevel, nil, "")
	facade.addUnit(unitUUID, &topLevel, "NY3-niveau")

	updater := newTestUpdater(facade, &config.Settings{
		LineManagementTopLevelUUIDs: []uuid.UUID{topLevel},
	})

	changed, err := updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.True(t, changed)
	writes := facade.editCount()

	// Second pass sees the persisted class and writes nothing.
	changed, err = updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, writes, facade.editCount())
}

func TestUpdateLineManagementDryRun(t *testing.T) {
	unitUUID := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.addUnit(unitUUID, nil, "")

	updater := newTestUpdater(facade, &config.Settings{DryRun: true})

	changed, err := updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, facade.editCount())
}

func TestUpdateLineManagementRootUnit(t *testing.T) {
	// A unit parented directly on the organisation clears the parent field
	// and triggers no upward recursion.
	unitUUID := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.addUnit(unitUUID, nil, "")

	updater := newTestUpdater(facade, &config.Settings{})

	changed, err := updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 1, facade.editCount())
	assert.True(t, facade.edits[0].ClearParent)
}

func TestUpdateLineManagementNonRootKeepsParent(t *testing.T) {
	parent := uuid.New()
	unitUUID := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.addUnit(parent, nil, "")
	facade.addUnit(unitUUID, &parent, "")

	updater := newTestUpdater(facade, &config.Settings{})

	changed, err := updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.GreaterOrEqual(t, facade.editCount(), 1)
	assert.False(t, facade.edits[0].ClearParent)
	// Edit order is bottom-up: the unit lands before its parent.
	assert.Equal(t, []uuid.UUID{unitUUID, parent}, facade.editedUnits())
}

func TestUpdateLineManagementParentRecursionSettles(t *testing.T) {
	// Recalculating the leaf fixes the whole chain; the second recursion
	// level sees an already correct grandparent and stops writing.
	grandparent := uuid.New()
	parent := uuid.New()
	leaf := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.addUnit(grandparent, nil, "")
	facade.addUnit(parent, &grandparent, "")
	facade.addUnit(leaf, &parent, "NY2-niveau")

	updater := newTestUpdater(facade, &config.Settings{
		LineManagementTopLevelUUIDs: []uuid.UUID{grandparent},
	})

	changed, err := updater.UpdateLineManagement(context.Background(), leaf)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []uuid.UUID{leaf, parent, grandparent}, facade.editedUnits())

	changed, err = updater.UpdateLineManagement(context.Background(), leaf)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 3, facade.editCount())
}

func TestUpdateLineManagementUnknownUnit(t *testing.T) {
	facade := newFakeFacade(uuid.New())
	updater := newTestUpdater(facade, &config.Settings{})

	_, err := updater.UpdateLineManagement(context.Background(), uuid.New())
	require.ErrorIs(t, err, mo.ErrNotFound)
}

func TestUpdateLineManagementMergedCategories(t *testing.T) {
	// When two categories share a class UUID, a unit flipping between them
	// is a no-op.
	unitUUID := uuid.New()

	facade := newFakeFacade(uuid.New())
	facade.classes[model.CategoryNA] = facade.classes[model.CategoryLineManagement]
	record := facade.addUnit(unitUUID, nil, "")
	merged := facade.classes[model.CategoryNA]
	record.unit.HierarchyUUID = &merged

	updater := newTestUpdater(facade, &config.Settings{})

	changed, err := updater.UpdateLineManagement(context.Background(), unitUUID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, facade.editCount())
}
