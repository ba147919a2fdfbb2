package models

// Condition is the wear grading of a skin. A nil *Condition means no grading applies.
type Condition string

const (
	FactoryNew    Condition = "Factory New"
	MinimalWear   Condition = "Minimal Wear"
	FieldTested   Condition = "Field-Tested"
	WellWorn      Condition = "Well-Worn"
	BattleScarred Condition = "Battle-Scarred"
)

// Conditions lists every wear grade from best to worst.
var Conditions = []Condition{FactoryNew, MinimalWear, FieldTested, WellWorn, BattleScarred}

func (c Condition) Valid() bool {
	for _, known := range Conditions {
		if c == known {
			return true
		}
	}
	return false
}

func (c Condition) String() string { return string(c) }

// ConditionPtr is a helper for building identities in literals.
func ConditionPtr(c Condition) *Condition { return &c }
