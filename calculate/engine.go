package calculate

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/internal/config"
	"github.com/os2mo/orggatekeeper/model"
)

// nyLevelRegex matches the NY unit levels that structurally qualify for line
// management. Only single digits qualify: "NY10-niveau" and "NY-1-niveau" are
// excluded, confirmed by fixtures.
var nyLevelRegex = regexp.MustCompile(`^NY[0-9]-niveau$`)

const departmentLevel = "Afdelings-niveau"

// maxWalkDepth bounds ancestor walks. Real trees are far shallower, so
// exceeding it means the parent chain loops.
const maxWalkDepth = 1024

// Engine decides exactly one hierarchy category for a unit, evaluating the
// predicates in priority order: hidden, line management, self-owned, and the
// not-applicable fallback. First match wins.
type Engine struct {
	mo       Facade
	settings *config.Settings
	log      *zap.Logger
}

// NewEngine builds an engine over a frozen configuration snapshot.
func NewEngine(mo Facade, settings *config.Settings, log *zap.Logger) *Engine {
	return &Engine{mo: mo, settings: settings, log: log}
}

// Classify returns the category the unit should be filed under.
func (e *Engine) Classify(ctx context.Context, unitUUID uuid.UUID) (model.Category, error) {
	hide, err := e.shouldHide(ctx, unitUUID)
	if err != nil {
		return "", err
	}
	if hide {
		e.log.Info("Organisation unit needs to be hidden", zap.String("uuid", unitUUID.String()))
		return model.CategoryHidden, nil
	}

	line, err := e.isLineManagement(ctx, unitUUID)
	if err != nil {
		return "", err
	}
	if line {
		e.log.Info("Organisation unit needs to be in line management", zap.String("uuid", unitUUID.String()))
		return model.CategoryLineManagement, nil
	}

	if e.settings.SelfOwnedITSystemCheck != "" {
		selfOwned, err := e.isSelfOwned(ctx, unitUUID)
		if err != nil {
			return "", err
		}
		if selfOwned {
			e.log.Info("Organisation unit needs to be marked as self-owned", zap.String("uuid", unitUUID.String()))
			return model.CategorySelfOwned, nil
		}
	}

	e.log.Info("Organisation unit needs to be marked as outside hierarchy", zap.String("uuid", unitUUID.String()))
	return model.CategoryNA, nil
}

// shouldHide reports whether the unit is in the configured hidden set or is a
// descendant of a unit that is.
func (e *Engine) shouldHide(ctx context.Context, unitUUID uuid.UUID) (bool, error) {
	if !e.settings.EnableHideLogic {
		return false, nil
	}
	hidden := e.settings.HiddenSet()
	if _, ok := hidden[unitUUID]; ok {
		return true, nil
	}
	return e.belowAny(ctx, unitUUID, hidden)
}

// belowAny walks the parent chain and reports whether any ancestor is in the
// given set. The walk carries a visited guard so a corrupted, cyclic tree
// fails with ErrCycleDetected instead of looping forever.
func (e *Engine) belowAny(ctx context.Context, unitUUID uuid.UUID, set map[uuid.UUID]struct{}) (bool, error) {
	if len(set) == 0 {
		e.log.Debug("Ancestor check against empty set", zap.String("uuid", unitUUID.String()))
		return false, nil
	}

	visited := make(map[uuid.UUID]struct{})
	current := unitUUID
	for depth := 0; depth < maxWalkDepth; depth++ {
		if _, ok := visited[current]; ok {
			return false, fmt.Errorf("ancestor walk revisited unit %s: %w", current, ErrCycleDetected)
		}
		visited[current] = struct{}{}

		parent, err := e.mo.FetchParentUUID(ctx, current)
		if err != nil {
			return false, err
		}
		if parent == nil {
			// top of the tree
			return false, nil
		}
		if _, ok := set[*parent]; ok {
			return true, nil
		}
		current = *parent
	}
	return false, fmt.Errorf("ancestor walk exceeded %d steps from unit %s: %w", maxWalkDepth, unitUUID, ErrCycleDetected)
}

// isLineManagement checks the unit itself and then, depth-first, its
// descendants. A unit with a qualifying descendant is marked line management
// too, so the frontend can render an unbroken path down to it.
func (e *Engine) isLineManagement(ctx context.Context, unitUUID uuid.UUID) (bool, error) {
	stack := []uuid.UUID{unitUUID}
	visited := make(map[uuid.UUID]struct{})

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := visited[current]; ok {
			return false, fmt.Errorf("descendant check revisited unit %s: %w", current, ErrCycleDetected)
		}
		visited[current] = struct{}{}

		// Units in the configured top-level set are always line management.
		if _, ok := e.settings.LineManagementTopLevelSet()[current]; ok {
			return true, nil
		}

		qualified, err := e.structurallyQualified(ctx, current)
		if err != nil {
			return false, err
		}
		if qualified {
			return true, nil
		}

		children, err := e.mo.FetchChildren(ctx, current)
		if err != nil {
			return false, err
		}
		stack = append(stack, children...)
	}
	return false, nil
}

// structurallyQualified evaluates the level-label rule: NY0- through
// NY9-niveau qualifies outright, Afdelings-niveau only with people attached.
// Either way the unit must additionally sit below one of the configured
// top-level line management units.
func (e *Engine) structurallyQualified(ctx context.Context, unitUUID uuid.UUID) (bool, error) {
	unit, err := e.mo.FetchOrgUnit(ctx, unitUUID)
	if err != nil {
		return false, err
	}
	if unit.Level == nil {
		e.log.Debug("Found no org_unit_level, assuming not in line-org", zap.String("uuid", unitUUID.String()))
		return false, nil
	}

	isNYLevel := nyLevelRegex.MatchString(*unit.Level)
	isDepartmentLevel := *unit.Level == departmentLevel
	if !isNYLevel && !isDepartmentLevel {
		return false, nil
	}

	if isDepartmentLevel {
		engagements, associations, err := e.mo.FetchStaffing(ctx, unitUUID, e.settings.HiddenEngagementTypes)
		if err != nil {
			return false, err
		}
		if engagements == 0 && associations == 0 {
			return false, nil
		}
	}

	// Ancestry gate: an empty top-level set means no unit qualifies
	// structurally at all.
	return e.belowAny(ctx, unitUUID, e.settings.LineManagementTopLevelSet())
}

// isSelfOwned reports whether the unit has an IT-account in the configured
// check system.
func (e *Engine) isSelfOwned(ctx context.Context, unitUUID uuid.UUID) (bool, error) {
	systemUUID, err := e.mo.GetITSystemUUID(ctx, e.settings.SelfOwnedITSystemCheck)
	if err != nil {
		return false, err
	}
	systems, err := e.mo.FetchITSystems(ctx, unitUUID)
	if err != nil {
		return false, err
	}
	for _, system := range systems {
		if system == systemUUID {
			return true, nil
		}
	}
	return false, nil
}
