package models

import "strings"

const (
	// SpecialItemMarker prefixes knives and gloves, e.g. "★ Karambit".
	SpecialItemMarker = "★ "
	statTrakMarking   = "StatTrak™ "
	souvenirMarking   = "Souvenir "
	phaseSeparator    = " – "
)

// DeriveDisplayName renders the canonical market name of a variant.
// It is the only place a display name is produced; stored copies are
// written through it by Item.BeforeSave.
func DeriveDisplayName(nameBase string, stattrak, souvenir bool, condition *Condition, phase *string) string {
	name := nameBase
	if souvenir && !stattrak {
		name = souvenirMarking + name
	}

	switch {
	case stattrak && strings.HasPrefix(name, SpecialItemMarker):
		name = SpecialItemMarker + statTrakMarking + strings.TrimPrefix(name, SpecialItemMarker)
	case stattrak:
		name = statTrakMarking + name
	}

	if condition != nil {
		name += " (" + string(*condition) + ")"
	}
	if phase != nil {
		name += phaseSeparator + *phase
	}
	return strings.Trim(name, " ")
}

// DisplayName derives the name for an identity tuple.
func (id Identity) DisplayName() string {
	return DeriveDisplayName(id.NameBase, id.StatTrak, id.Souvenir, id.Condition, id.Phase)
}
