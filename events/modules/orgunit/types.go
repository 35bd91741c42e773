// Package orgunit defines types for change events on organisation units and
// the staffing records attached to them.
package orgunit

import (
	"time"

	"github.com/google/uuid"
)

// Event type values carried on the change topic, one per event class.
const (
	EventOrgUnit     = "org_unit"
	EventITAccount   = "it"
	EventEngagement  = "engagement"
	EventAssociation = "association"
)

// ChangeEvent is the envelope published for every registry change. Delivery
// is at-least-once; per-unit recalculation is idempotent, so duplicates and
// reordering are harmless.
type ChangeEvent struct {
	EventType string    `json:"event_type"`
	UUID      uuid.UUID `json:"uuid"`
	EventTime time.Time `json:"time"`
}
