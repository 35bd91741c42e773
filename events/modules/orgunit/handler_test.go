package orgunit

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorderRecalculator struct {
	orgUnits     []uuid.UUID
	engagements  []uuid.UUID
	associations []uuid.UUID
	err          error
}

func (r *recorderRecalculator) HandleOrgUnitEvent(_ context.Context, unitUUID uuid.UUID) error {
	r.orgUnits = append(r.orgUnits, unitUUID)
	return r.err
}

func (r *recorderRecalculator) HandleEngagementEvent(_ context.Context, engagementUUID uuid.UUID) error {
	r.engagements = append(r.engagements, engagementUUID)
	return r.err
}

func (r *recorderRecalculator) HandleAssociationEvent(_ context.Context, associationUUID uuid.UUID) error {
	r.associations = append(r.associations, associationUUID)
	return r.err
}

func TestHandleChangeEventDispatch(t *testing.T) {
	cases := []struct {
		eventType string
		target    func(r *recorderRecalculator) []uuid.UUID
	}{
		{EventOrgUnit, func(r *recorderRecalculator) []uuid.UUID { return r.orgUnits }},
		// IT-account changes recalculate the owning unit.
		{EventITAccount, func(r *recorderRecalculator) []uuid.UUID { return r.orgUnits }},
		{EventEngagement, func(r *recorderRecalculator) []uuid.UUID { return r.engagements }},
		{EventAssociation, func(r *recorderRecalculator) []uuid.UUID { return r.associations }},
	}

	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			entityUUID := uuid.New()
			msg := []byte(fmt.Sprintf(
				`{"event_type": %q, "uuid": %q, "time": "2023-05-01T12:00:00Z"}`,
				tc.eventType, entityUUID))

			rec := &recorderRecalculator{}
			err := HandleChangeEvent(context.Background(), msg, rec, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{entityUUID}, tc.target(rec))
		})
	}
}

func TestHandleChangeEventRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		msg  string
	}{
		{"not json", `not json at all`},
		{"missing event type", fmt.Sprintf(`{"uuid": %q}`, uuid.New())},
		{"missing uuid", `{"event_type": "org_unit"}`},
		{"nil uuid", `{"event_type": "org_unit", "uuid": "00000000-0000-0000-0000-000000000000"}`},
		{"unknown event type", fmt.Sprintf(`{"event_type": "facet", "uuid": %q}`, uuid.New())},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorderRecalculator{}
			err := HandleChangeEvent(context.Background(), []byte(tc.msg), rec, zap.NewNop())
			require.Error(t, err)
			assert.Empty(t, rec.orgUnits)
			assert.Empty(t, rec.engagements)
			assert.Empty(t, rec.associations)
		})
	}
}

func TestHandleChangeEventPropagatesRecalculatorError(t *testing.T) {
	rec := &recorderRecalculator{err: fmt.Errorf("registry unavailable")}
	msg := []byte(fmt.Sprintf(`{"event_type": "org_unit", "uuid": %q}`, uuid.New()))

	err := HandleChangeEvent(context.Background(), msg, rec, zap.NewNop())
	require.ErrorContains(t, err, "registry unavailable")
}
