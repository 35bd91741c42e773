// Package calculate holds the classification core: the predicate engine that
// decides a unit's hierarchy category, the reconciliation driver that writes
// it back with minimal safe edits, and the coordinator that fans
// recalculation out over unit sets.
package calculate

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/os2mo/orggatekeeper/model"
)

// ErrCycleDetected is returned when a tree walk revisits a unit or exceeds
// the defensive depth bound. The registry tree is supposed to be finite and
// acyclic, so this indicates upstream data corruption.
var ErrCycleDetected = errors.New("cycle detected in org unit tree")

// Facade is the registry access the core depends on. The mo package provides
// the production implementation; tests substitute fakes.
type Facade interface {
	FetchOrgUnit(ctx context.Context, unitUUID uuid.UUID) (*model.OrgUnit, error)
	FetchParentUUID(ctx context.Context, unitUUID uuid.UUID) (*uuid.UUID, error)
	FetchStaffing(ctx context.Context, unitUUID uuid.UUID, excludedEngagementTypes []string) (int, int, error)
	FetchChildren(ctx context.Context, unitUUID uuid.UUID) ([]uuid.UUID, error)
	FetchITSystems(ctx context.Context, unitUUID uuid.UUID) ([]uuid.UUID, error)
	GetClassUUID(ctx context.Context, category model.Category) (uuid.UUID, error)
	GetITSystemUUID(ctx context.Context, userKey string) (uuid.UUID, error)
	EditOrgUnitHierarchy(ctx context.Context, edit model.OrgUnitEdit) error
	FetchAllOrgUnitUUIDs(ctx context.Context) ([]uuid.UUID, error)
	FetchOrgUnitsMissingHierarchy(ctx context.Context) ([]uuid.UUID, error)
	FetchOrgUnitsForEngagement(ctx context.Context, engagementUUID uuid.UUID) ([]uuid.UUID, error)
	FetchOrgUnitsForAssociation(ctx context.Context, associationUUID uuid.UUID) ([]uuid.UUID, error)
}
