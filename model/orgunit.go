// Package model defines the data structures exchanged with the OS2mo registry.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Validity is a date interval. A nil To means the interval is open-ended.
type Validity struct {
	From time.Time
	To   *time.Time
}

// OrgUnit is an immutable snapshot of an organisation unit as read from the
// registry. The facade returns it; only the reconciliation driver decides to
// write a changed hierarchy back.
type OrgUnit struct {
	UUID    uuid.UUID
	UserKey string
	Name    string

	// ParentUUID is nil only for the organisation root itself. Units directly
	// below the root carry the root organisation UUID here.
	ParentUUID *uuid.UUID

	// HierarchyUUID is the currently persisted org_unit_hierarchy class.
	// Nil when the unit has never been classified.
	HierarchyUUID *uuid.UUID

	// Level is the user_key of the org_unit_level class, e.g. "NY3-niveau"
	// or "Afdelings-niveau". Nil when the unit has no level set.
	Level *string

	Validity Validity
}

// IsRootUnit reports whether the unit sits directly below the organisation
// identified by orgUUID.
func (ou *OrgUnit) IsRootUnit(orgUUID uuid.UUID) bool {
	return ou.ParentUUID != nil && *ou.ParentUUID == orgUUID
}

// OrgUnitEdit is the field patch written back to the registry when a unit's
// hierarchy classification changes. Edits are append-style: a fresh validity
// window starting at From, never touching earlier segments.
type OrgUnitEdit struct {
	UUID          uuid.UUID
	HierarchyUUID uuid.UUID
	Validity      Validity

	// ClearParent requests an explicit null parent in the edit payload.
	// It is set only for units parented directly on the organisation root:
	// resending the root as parent makes the registry attempt a move, which
	// it rejects for root units. All other units never carry a parent field
	// in the patch at all.
	ClearParent bool
}
