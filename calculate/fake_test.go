package calculate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/os2mo/orggatekeeper/mo"
	"github.com/os2mo/orggatekeeper/model"
)

// fakeUnit is the in-memory registry record backing fakeFacade.
type fakeUnit struct {
	unit         *model.OrgUnit
	children     []uuid.UUID
	engagements  []string // engagement type names
	associations int
	itSystems    []uuid.UUID
}

// fakeFacade implements Facade over an in-memory tree. The org root itself is
// not a unit: a unit whose parent is the org UUID has no parent in walks,
// matching the registry's behaviour.
type fakeFacade struct {
	mu sync.Mutex

	orgUUID          uuid.UUID
	units            map[uuid.UUID]*fakeUnit
	classes          map[model.Category]uuid.UUID
	itSystemUUIDs    map[string]uuid.UUID
	allUnits         []uuid.UUID
	missing          []uuid.UUID
	engagementUnits  map[uuid.UUID][]uuid.UUID
	associationUnits map[uuid.UUID][]uuid.UUID

	edits []model.OrgUnitEdit

	// onFetchOrgUnit, when set, is invoked at the start of every FetchOrgUnit
	// call. Used to observe concurrency.
	onFetchOrgUnit func()
}

func newFakeFacade(orgUUID uuid.UUID) *fakeFacade {
	return &fakeFacade{
		orgUUID: orgUUID,
		units:   make(map[uuid.UUID]*fakeUnit),
		classes: map[model.Category]uuid.UUID{
			model.CategoryHidden:         uuid.New(),
			model.CategoryLineManagement: uuid.New(),
			model.CategorySelfOwned:      uuid.New(),
			model.CategoryNA:             uuid.New(),
		},
		itSystemUUIDs:    make(map[string]uuid.UUID),
		engagementUnits:  make(map[uuid.UUID][]uuid.UUID),
		associationUnits: make(map[uuid.UUID][]uuid.UUID),
	}
}

// addUnit registers a unit. A nil parent puts the unit directly below the org
// root. Level may be empty for "no level set".
func (f *fakeFacade) addUnit(unitUUID uuid.UUID, parent *uuid.UUID, level string) *fakeUnit {
	parentUUID := f.orgUUID
	if parent != nil {
		parentUUID = *parent
	}
	unit := &model.OrgUnit{
		UUID:       unitUUID,
		UserKey:    unitUUID.String()[:8],
		Name:       "unit-" + unitUUID.String()[:8],
		ParentUUID: &parentUUID,
	}
	if level != "" {
		unit.Level = &level
	}
	record := &fakeUnit{unit: unit}
	f.units[unitUUID] = record
	if parent != nil {
		if parentRecord, ok := f.units[*parent]; ok {
			parentRecord.children = append(parentRecord.children, unitUUID)
		}
	}
	return record
}

func (f *fakeFacade) lookup(unitUUID uuid.UUID) (*fakeUnit, error) {
	record, ok := f.units[unitUUID]
	if !ok {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, mo.ErrNotFound)
	}
	return record, nil
}

func (f *fakeFacade) FetchOrgUnit(_ context.Context, unitUUID uuid.UUID) (*model.OrgUnit, error) {
	f.mu.Lock()
	hook := f.onFetchOrgUnit
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.lookup(unitUUID)
	if err != nil {
		return nil, err
	}
	snapshot := *record.unit
	return &snapshot, nil
}

func (f *fakeFacade) FetchParentUUID(_ context.Context, unitUUID uuid.UUID) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.lookup(unitUUID)
	if err != nil {
		return nil, err
	}
	if record.unit.ParentUUID == nil || *record.unit.ParentUUID == f.orgUUID {
		return nil, nil
	}
	parent := *record.unit.ParentUUID
	return &parent, nil
}

func (f *fakeFacade) FetchStaffing(_ context.Context, unitUUID uuid.UUID, excludedEngagementTypes []string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.lookup(unitUUID)
	if err != nil {
		return 0, 0, err
	}
	engagements := 0
	for _, typeName := range record.engagements {
		excluded := false
		for _, candidate := range excludedEngagementTypes {
			if candidate == typeName {
				excluded = true
				break
			}
		}
		if !excluded {
			engagements++
		}
	}
	return engagements, record.associations, nil
}

func (f *fakeFacade) FetchChildren(_ context.Context, unitUUID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.lookup(unitUUID)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID(nil), record.children...), nil
}

func (f *fakeFacade) FetchITSystems(_ context.Context, unitUUID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.lookup(unitUUID)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID(nil), record.itSystems...), nil
}

func (f *fakeFacade) GetClassUUID(_ context.Context, category model.Category) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	classUUID, ok := f.classes[category]
	if !ok {
		return uuid.Nil, fmt.Errorf("category %q: %w", category, mo.ErrLookupFailure)
	}
	return classUUID, nil
}

func (f *fakeFacade) GetITSystemUUID(_ context.Context, userKey string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	systemUUID, ok := f.itSystemUUIDs[userKey]
	if !ok {
		return uuid.Nil, fmt.Errorf("it-system %q: %w", userKey, mo.ErrLookupFailure)
	}
	return systemUUID, nil
}

func (f *fakeFacade) EditOrgUnitHierarchy(_ context.Context, edit model.OrgUnitEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.units[edit.UUID]; ok {
		hierarchy := edit.HierarchyUUID
		record.unit.HierarchyUUID = &hierarchy
	}
	f.edits = append(f.edits, edit)
	return nil
}

func (f *fakeFacade) FetchAllOrgUnitUUIDs(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.allUnits...), nil
}

func (f *fakeFacade) FetchOrgUnitsMissingHierarchy(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.missing...), nil
}

func (f *fakeFacade) FetchOrgUnitsForEngagement(_ context.Context, engagementUUID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	units, ok := f.engagementUnits[engagementUUID]
	if !ok {
		return nil, fmt.Errorf("engagement %s: %w", engagementUUID, mo.ErrNotFound)
	}
	return append([]uuid.UUID(nil), units...), nil
}

func (f *fakeFacade) FetchOrgUnitsForAssociation(_ context.Context, associationUUID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	units, ok := f.associationUnits[associationUUID]
	if !ok {
		return nil, fmt.Errorf("association %s: %w", associationUUID, mo.ErrNotFound)
	}
	return append([]uuid.UUID(nil), units...), nil
}

func (f *fakeFacade) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakeFacade) editedUnits() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	units := make([]uuid.UUID, 0, len(f.edits))
	for _, edit := range f.edits {
		units = append(units, edit.UUID)
	}
	return units
}
