package models

import "strings"

// ParseMarketHashName splits a market hash name such as
// "★ StatTrak™ Karambit | Doppler (Factory New) – Phase 2" into its identity
// tuple. It inverts DeriveDisplayName for every tuple except souvenir+StatTrak,
// whose souvenir flag the display name does not carry.
func ParseMarketHashName(name string) Identity {
	s := strings.TrimSpace(name)
	var id Identity

	if idx := strings.LastIndex(s, phaseSeparator); idx >= 0 {
		if phase := strings.TrimSpace(s[idx+len(phaseSeparator):]); phase != "" {
			id.Phase = &phase
		}
		s = strings.TrimSpace(s[:idx])
	}

	for _, c := range Conditions {
		suffix := "(" + string(c) + ")"
		if strings.HasSuffix(s, suffix) {
			cond := c
			id.Condition = &cond
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}

	marker := ""
	if strings.HasPrefix(s, SpecialItemMarker) {
		marker = SpecialItemMarker
		s = strings.TrimPrefix(s, SpecialItemMarker)
	}
	for _, prefix := range []string{statTrakMarking, "StatTrak "} {
		if strings.HasPrefix(s, prefix) {
			id.StatTrak = true
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	if strings.HasPrefix(s, souvenirMarking) {
		id.Souvenir = true
		s = strings.TrimPrefix(s, souvenirMarking)
	}

	id.NameBase = strings.TrimSpace(marker + s)
	return id
}
