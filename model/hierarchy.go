package model

// Category is one of the mutually exclusive hierarchy classifications a unit
// can end up in. The concrete class UUID behind each category lives in the
// registry's org_unit_hierarchy facet and is resolved at runtime.
type Category string

const (
	// CategoryHidden marks units (and their subtrees) excluded from display.
	CategoryHidden Category = "hidden"
	// CategoryLineManagement marks units in the formal management chain.
	CategoryLineManagement Category = "line-management"
	// CategorySelfOwned marks units flagged through an IT-system account link.
	CategorySelfOwned Category = "self-owned"
	// CategoryNA is the fallback when no other category applies.
	CategoryNA Category = "na"
)

// Categories lists every category in classification priority order.
func Categories() []Category {
	return []Category{
		CategoryHidden,
		CategoryLineManagement,
		CategorySelfOwned,
		CategoryNA,
	}
}
