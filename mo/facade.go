package mo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	graphql "github.com/hasura/go-graphql-client"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/model"
)

// gqlExecutor is the slice of the GraphQL client the facade needs: a named
// query document plus a variable map, answered with a nested result tree.
type gqlExecutor interface {
	ExecRaw(ctx context.Context, query string, variables map[string]interface{}, options ...graphql.Option) ([]byte, error)
}

// ClassConfig carries the per-category class resolution inputs: an optional
// preconfigured UUID (which suppresses any remote lookup) and the fallback
// user key within the org_unit_hierarchy facet.
type ClassConfig struct {
	UUID    *uuid.UUID
	UserKey string
}

// Facade translates the core's data needs into registry calls. Its only state
// is the resolved-identifier caches for hierarchy classes and IT-systems;
// both are safe for concurrent use and tolerate redundant population.
type Facade struct {
	gql         gqlExecutor
	modelClient *ModelClient
	classes     map[model.Category]ClassConfig
	log         *zap.Logger

	mu            sync.Mutex
	classCache    map[model.Category]uuid.UUID
	itSystemCache map[string]uuid.UUID
}

// NewFacade wires a facade over the given transports.
func NewFacade(gql gqlExecutor, modelClient *ModelClient, classes map[model.Category]ClassConfig, log *zap.Logger) *Facade {
	return &Facade{
		gql:           gql,
		modelClient:   modelClient,
		classes:       classes,
		log:           log,
		classCache:    make(map[model.Category]uuid.UUID),
		itSystemCache: make(map[string]uuid.UUID),
	}
}

// Field names in these documents are registry-defined and must be preserved
// verbatim for compatibility.
const (
	orgUnitQuery = `
		query OrgUnitQuery($uuids: [UUID!]) {
			org_units(uuids: $uuids) {
				objects {
					uuid
					user_key
					name
					parent_uuid
					org_unit_hierarchy_uuid: org_unit_hierarchy
					org_unit_level {
						user_key
					}
					validity {
						from
						to
					}
				}
			}
		}`

	parentQuery = `
		query ParentQuery($uuids: [UUID!]) {
			org_units(uuids: $uuids) {
				objects {
					parent {
						uuid
					}
				}
			}
		}`

	staffingQuery = `
		query StaffingQuery($uuids: [UUID!]) {
			org_units(uuids: $uuids) {
				objects {
					engagements {
						uuid
						engagement_type {
							name
						}
					}
					associations {
						uuid
					}
				}
			}
		}`

	childrenQuery = `
		query ChildrenQuery($uuids: [UUID!]) {
			org_units(uuids: $uuids) {
				objects {
					children {
						uuid
					}
				}
			}
		}`

	itUsersQuery = `
		query ITUserQuery($uuids: [UUID!]) {
			org_units(uuids: $uuids) {
				objects {
					itusers {
						itsystem_uuid
					}
				}
			}
		}`

	classQuery = `
		query ClassQuery($user_keys: [String!]) {
			facets(user_keys: $user_keys) {
				classes {
					uuid
					user_key
				}
			}
		}`

	itSystemQuery = `
		query ITSystemQuery($user_keys: [String!]) {
			itsystems(user_keys: $user_keys) {
				uuid
			}
		}`

	orgQuery = `
		query OrganisationUuidQuery {
			org {
				uuid
			}
		}`

	allOrgUnitsQuery = `
		query OrgUnitUUIDQuery {
			org_units {
				uuid
			}
		}`

	missingHierarchyQuery = `
		query OrgUnitHierarchyQuery {
			org_units {
				uuid
				objects {
					org_unit_hierarchy
				}
			}
		}`

	engagementOrgUnitQuery = `
		query EngagementOrgUnitQuery($uuids: [UUID!]) {
			engagements(uuids: $uuids, from_date: null, to_date: null) {
				objects {
					org_unit_uuid
				}
			}
		}`

	associationOrgUnitQuery = `
		query AssociationOrgUnitQuery($uuids: [UUID!]) {
			associations(uuids: $uuids, from_date: null, to_date: null) {
				objects {
					org_unit_uuid
				}
			}
		}`
)

// exactlyOne enforces strict single-result semantics. Zero or multiple
// results both map to ErrNotFound so callers fail loudly instead of silently
// defaulting.
func exactlyOne[T any](items []T) (T, error) {
	var zero T
	if len(items) != 1 {
		return zero, fmt.Errorf("expected exactly one result, got %d: %w", len(items), ErrNotFound)
	}
	return items[0], nil
}

// parseMODate accepts the registry's validity date formats.
func parseMODate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable registry date %q", raw)
}

type orgUnitObject struct {
	UUID          uuid.UUID  `json:"uuid"`
	UserKey       string     `json:"user_key"`
	Name          string     `json:"name"`
	ParentUUID    *uuid.UUID `json:"parent_uuid"`
	HierarchyUUID *uuid.UUID `json:"org_unit_hierarchy_uuid"`
	OrgUnitLevel  *struct {
		UserKey string `json:"user_key"`
	} `json:"org_unit_level"`
	Validity struct {
		From string  `json:"from"`
		To   *string `json:"to"`
	} `json:"validity"`
}

// FetchOrgUnit fetches a single organisation unit snapshot.
func (f *Facade) FetchOrgUnit(ctx context.Context, unitUUID uuid.UUID) (*model.OrgUnit, error) {
	var resp struct {
		OrgUnits []struct {
			Objects []orgUnitObject `json:"objects"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, orgUnitQuery, uuidsVar(unitUUID), &resp); err != nil {
		return nil, fmt.Errorf("fetching org unit %s: %w", unitUUID, err)
	}

	wrapper, err := exactlyOne(resp.OrgUnits)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}
	obj, err := exactlyOne(wrapper.Objects)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}

	from, err := parseMODate(obj.Validity.From)
	if err != nil {
		return nil, fmt.Errorf("org unit %s validity: %w", unitUUID, err)
	}
	validity := model.Validity{From: from}
	if obj.Validity.To != nil {
		to, err := parseMODate(*obj.Validity.To)
		if err != nil {
			return nil, fmt.Errorf("org unit %s validity: %w", unitUUID, err)
		}
		validity.To = &to
	}

	unit := &model.OrgUnit{
		UUID:          obj.UUID,
		UserKey:       obj.UserKey,
		Name:          obj.Name,
		ParentUUID:    obj.ParentUUID,
		HierarchyUUID: obj.HierarchyUUID,
		Validity:      validity,
	}
	if obj.OrgUnitLevel != nil {
		level := obj.OrgUnitLevel.UserKey
		unit.Level = &level
	}
	return unit, nil
}

// FetchParentUUID resolves the immediate parent reference of a unit, or nil
// when the unit is at the top of the tree.
func (f *Facade) FetchParentUUID(ctx context.Context, unitUUID uuid.UUID) (*uuid.UUID, error) {
	var resp struct {
		OrgUnits []struct {
			Objects []struct {
				Parent *struct {
					UUID uuid.UUID `json:"uuid"`
				} `json:"parent"`
			} `json:"objects"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, parentQuery, uuidsVar(unitUUID), &resp); err != nil {
		return nil, fmt.Errorf("fetching parent of %s: %w", unitUUID, err)
	}

	wrapper, err := exactlyOne(resp.OrgUnits)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}
	obj, err := exactlyOne(wrapper.Objects)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}
	if obj.Parent == nil {
		return nil, nil
	}
	parent := obj.Parent.UUID
	return &parent, nil
}

// FetchStaffing counts the engagements and associations attached to a unit.
// Engagements whose type name is in excludedEngagementTypes are not counted.
func (f *Facade) FetchStaffing(ctx context.Context, unitUUID uuid.UUID, excludedEngagementTypes []string) (int, int, error) {
	var resp struct {
		OrgUnits []struct {
			Objects []struct {
				Engagements []struct {
					UUID           uuid.UUID `json:"uuid"`
					EngagementType struct {
						Name string `json:"name"`
					} `json:"engagement_type"`
				} `json:"engagements"`
				Associations []struct {
					UUID uuid.UUID `json:"uuid"`
				} `json:"associations"`
			} `json:"objects"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, staffingQuery, uuidsVar(unitUUID), &resp); err != nil {
		return 0, 0, fmt.Errorf("fetching staffing of %s: %w", unitUUID, err)
	}

	wrapper, err := exactlyOne(resp.OrgUnits)
	if err != nil {
		return 0, 0, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}
	obj, err := exactlyOne(wrapper.Objects)
	if err != nil {
		return 0, 0, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}

	engagements := 0
	for _, engagement := range obj.Engagements {
		if contains(excludedEngagementTypes, engagement.EngagementType.Name) {
			continue
		}
		engagements++
	}
	return engagements, len(obj.Associations), nil
}

// FetchChildren lists the direct children of a unit.
func (f *Facade) FetchChildren(ctx context.Context, unitUUID uuid.UUID) ([]uuid.UUID, error) {
	var resp struct {
		OrgUnits []struct {
			Objects []struct {
				Children []struct {
					UUID uuid.UUID `json:"uuid"`
				} `json:"children"`
			} `json:"objects"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, childrenQuery, uuidsVar(unitUUID), &resp); err != nil {
		return nil, fmt.Errorf("fetching children of %s: %w", unitUUID, err)
	}

	wrapper, err := exactlyOne(resp.OrgUnits)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}
	obj, err := exactlyOne(wrapper.Objects)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}

	children := make([]uuid.UUID, 0, len(obj.Children))
	for _, child := range obj.Children {
		children = append(children, child.UUID)
	}
	return children, nil
}

// FetchITSystems lists the IT-systems a unit has accounts in.
func (f *Facade) FetchITSystems(ctx context.Context, unitUUID uuid.UUID) ([]uuid.UUID, error) {
	var resp struct {
		OrgUnits []struct {
			Objects []struct {
				ITUsers []struct {
					ITSystemUUID uuid.UUID `json:"itsystem_uuid"`
				} `json:"itusers"`
			} `json:"objects"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, itUsersQuery, uuidsVar(unitUUID), &resp); err != nil {
		return nil, fmt.Errorf("fetching itusers of %s: %w", unitUUID, err)
	}

	wrapper, err := exactlyOne(resp.OrgUnits)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}
	obj, err := exactlyOne(wrapper.Objects)
	if err != nil {
		return nil, fmt.Errorf("org unit %s: %w", unitUUID, err)
	}

	systems := make([]uuid.UUID, 0, len(obj.ITUsers))
	for _, itUser := range obj.ITUsers {
		systems = append(systems, itUser.ITSystemUUID)
	}
	return systems, nil
}

// GetClassUUID resolves a hierarchy category to its class UUID. A
// preconfigured UUID wins without any remote call; otherwise the class is
// looked up by user key within the org_unit_hierarchy facet and cached for
// the process lifetime. Classes do not change during a run.
func (f *Facade) GetClassUUID(ctx context.Context, category model.Category) (uuid.UUID, error) {
	classConfig := f.classes[category]
	if classConfig.UUID != nil {
		return *classConfig.UUID, nil
	}

	f.mu.Lock()
	cached, ok := f.classCache[category]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	var resp struct {
		Facets []struct {
			Classes []struct {
				UUID    uuid.UUID `json:"uuid"`
				UserKey string    `json:"user_key"`
			} `json:"classes"`
		} `json:"facets"`
	}
	variables := map[string]interface{}{"user_keys": []string{"org_unit_hierarchy"}}
	if err := f.exec(ctx, classQuery, variables, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("resolving class for category %q: %w", category, err)
	}

	if len(resp.Facets) != 1 {
		return uuid.Nil, fmt.Errorf("org_unit_hierarchy facet missing from registry: %w", ErrLookupFailure)
	}
	for _, class := range resp.Facets[0].Classes {
		if class.UserKey == classConfig.UserKey {
			f.mu.Lock()
			f.classCache[category] = class.UUID
			f.mu.Unlock()
			f.log.Debug("Resolved hierarchy class",
				zap.String("category", string(category)),
				zap.String("user_key", classConfig.UserKey),
				zap.String("uuid", class.UUID.String()))
			return class.UUID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("class with user key %q not in org_unit_hierarchy facet: %w", classConfig.UserKey, ErrLookupFailure)
}

// GetITSystemUUID resolves an IT-system user key to its UUID, memoized per
// process.
func (f *Facade) GetITSystemUUID(ctx context.Context, userKey string) (uuid.UUID, error) {
	f.mu.Lock()
	cached, ok := f.itSystemCache[userKey]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	var resp struct {
		ITSystems []struct {
			UUID uuid.UUID `json:"uuid"`
		} `json:"itsystems"`
	}
	variables := map[string]interface{}{"user_keys": []string{userKey}}
	if err := f.exec(ctx, itSystemQuery, variables, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("resolving it-system %q: %w", userKey, err)
	}
	if len(resp.ITSystems) != 1 {
		return uuid.Nil, fmt.Errorf("it-system with user key %q not in registry: %w", userKey, ErrLookupFailure)
	}

	f.mu.Lock()
	f.itSystemCache[userKey] = resp.ITSystems[0].UUID
	f.mu.Unlock()
	return resp.ITSystems[0].UUID, nil
}

// FetchOrgUUID fetches the UUID of the top-level organisation container.
func (f *Facade) FetchOrgUUID(ctx context.Context) (uuid.UUID, error) {
	var resp struct {
		Org struct {
			UUID uuid.UUID `json:"uuid"`
		} `json:"org"`
	}
	if err := f.exec(ctx, orgQuery, nil, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("fetching organisation uuid: %w", err)
	}
	return resp.Org.UUID, nil
}

// FetchAllOrgUnitUUIDs enumerates every organisation unit in the registry.
func (f *Facade) FetchAllOrgUnitUUIDs(ctx context.Context) ([]uuid.UUID, error) {
	var resp struct {
		OrgUnits []struct {
			UUID uuid.UUID `json:"uuid"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, allOrgUnitsQuery, nil, &resp); err != nil {
		return nil, fmt.Errorf("enumerating org units: %w", err)
	}

	uuids := make([]uuid.UUID, 0, len(resp.OrgUnits))
	for _, unit := range resp.OrgUnits {
		uuids = append(uuids, unit.UUID)
	}
	return uuids, nil
}

// FetchOrgUnitsMissingHierarchy lists units that have never been classified.
func (f *Facade) FetchOrgUnitsMissingHierarchy(ctx context.Context) ([]uuid.UUID, error) {
	var resp struct {
		OrgUnits []struct {
			UUID    uuid.UUID `json:"uuid"`
			Objects []struct {
				Hierarchy *uuid.UUID `json:"org_unit_hierarchy"`
			} `json:"objects"`
		} `json:"org_units"`
	}
	if err := f.exec(ctx, missingHierarchyQuery, nil, &resp); err != nil {
		return nil, fmt.Errorf("sweeping for unclassified org units: %w", err)
	}

	var missing []uuid.UUID
	for _, unit := range resp.OrgUnits {
		if len(unit.Objects) == 0 {
			continue
		}
		if unit.Objects[0].Hierarchy == nil {
			missing = append(missing, unit.UUID)
		}
	}
	return missing, nil
}

// FetchOrgUnitsForEngagement resolves the unit set owning an engagement. An
// empty set is a legitimate result; a vanished engagement is ErrNotFound.
func (f *Facade) FetchOrgUnitsForEngagement(ctx context.Context, engagementUUID uuid.UUID) ([]uuid.UUID, error) {
	return f.fetchOwningUnits(ctx, engagementOrgUnitQuery, "engagements", engagementUUID)
}

// FetchOrgUnitsForAssociation resolves the unit set owning an association.
func (f *Facade) FetchOrgUnitsForAssociation(ctx context.Context, associationUUID uuid.UUID) ([]uuid.UUID, error) {
	return f.fetchOwningUnits(ctx, associationOrgUnitQuery, "associations", associationUUID)
}

func (f *Facade) fetchOwningUnits(ctx context.Context, query, field string, entityUUID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := f.gql.ExecRaw(ctx, query, uuidsVar(entityUUID))
	if err != nil {
		return nil, fmt.Errorf("fetching org units for %s %s: %w", field, entityUUID, err)
	}

	var resp map[string][]struct {
		Objects []struct {
			OrgUnitUUID uuid.UUID `json:"org_unit_uuid"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding org units for %s %s: %w", field, entityUUID, err)
	}

	wrapper, err := exactlyOne(resp[field])
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", field, entityUUID, err)
	}

	seen := make(map[uuid.UUID]struct{}, len(wrapper.Objects))
	var units []uuid.UUID
	for _, obj := range wrapper.Objects {
		if _, ok := seen[obj.OrgUnitUUID]; ok {
			continue
		}
		seen[obj.OrgUnitUUID] = struct{}{}
		units = append(units, obj.OrgUnitUUID)
	}
	return units, nil
}

// EditOrgUnitHierarchy writes a new hierarchy classification. Non-root units
// never carry a parent field in the patch; units directly below the
// organisation root carry an explicit null so the registry does not interpret
// the edit as a move.
func (f *Facade) EditOrgUnitHierarchy(ctx context.Context, edit model.OrgUnitEdit) error {
	validity := map[string]interface{}{
		"from": edit.Validity.From.Format("2006-01-02"),
	}
	if edit.Validity.To != nil {
		validity["to"] = edit.Validity.To.Format("2006-01-02")
	}

	data := map[string]interface{}{
		"uuid":               edit.UUID.String(),
		"org_unit_hierarchy": map[string]interface{}{"uuid": edit.HierarchyUUID.String()},
		"validity":           validity,
	}
	if edit.ClearParent {
		data["parent"] = nil
	}

	payload := map[string]interface{}{
		"type": "org_unit",
		"data": data,
	}
	return f.modelClient.Edit(ctx, []interface{}{payload})
}

// HealthGraphQL reports whether the GraphQL endpoint answers the organisation
// query. Failures become a negative signal, never a panic.
func (f *Facade) HealthGraphQL(ctx context.Context) bool {
	orgUUID, err := f.FetchOrgUUID(ctx)
	if err != nil {
		f.log.Warn("GraphQL healthcheck failed", zap.Error(err))
		return false
	}
	return orgUUID != uuid.Nil
}

// HealthModelClient reports whether the edit API is reachable.
func (f *Facade) HealthModelClient(ctx context.Context) bool {
	return f.modelClient.Health(ctx)
}

func (f *Facade) exec(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	raw, err := f.gql.ExecRaw(ctx, query, variables)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding registry response: %w", err)
	}
	return nil
}

func uuidsVar(id uuid.UUID) map[string]interface{} {
	return map[string]interface{}{"uuids": []string{id.String()}}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
