// Package orgunit handles change event processing for organisation units.
package orgunit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recalculator is the coordination interface the event handler dispatches to.
type Recalculator interface {
	HandleOrgUnitEvent(ctx context.Context, unitUUID uuid.UUID) error
	HandleEngagementEvent(ctx context.Context, engagementUUID uuid.UUID) error
	HandleAssociationEvent(ctx context.Context, associationUUID uuid.UUID) error
}

// HandleChangeEvent processes one change message from the event transport.
func HandleChangeEvent(ctx context.Context, msg []byte, rec Recalculator, log *zap.Logger) error {
	var event ChangeEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return fmt.Errorf("failed to unmarshal ChangeEvent: %w", err)
	}
	if event.EventType == "" || event.UUID == uuid.Nil {
		return fmt.Errorf("invalid event: missing required fields")
	}

	log.Debug("Message received",
		zap.String("event_type", event.EventType),
		zap.String("uuid", event.UUID.String()),
		zap.Time("time", event.EventTime))

	switch event.EventType {
	case EventOrgUnit, EventITAccount:
		return rec.HandleOrgUnitEvent(ctx, event.UUID)
	case EventEngagement:
		return rec.HandleEngagementEvent(ctx, event.UUID)
	case EventAssociation:
		return rec.HandleAssociationEvent(ctx, event.UUID)
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
}
