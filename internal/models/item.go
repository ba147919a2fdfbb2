package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Identity is the attribute tuple that uniquely identifies a tradeable variant.
type Identity struct {
	NameBase  string     `json:"name_base"`
	StatTrak  bool       `json:"stattrak"`
	Souvenir  bool       `json:"souvenir"`
	Condition *Condition `json:"condition"`
	Phase     *string    `json:"phase"`
}

// Normalize trims the free-text attributes and folds an empty phase to nil.
func (id Identity) Normalize() Identity {
	id.NameBase = strings.TrimSpace(id.NameBase)
	if id.Phase != nil {
		p := strings.TrimSpace(*id.Phase)
		if p == "" {
			id.Phase = nil
		} else {
			id.Phase = &p
		}
	}
	if id.Condition != nil && *id.Condition == "" {
		id.Condition = nil
	}
	return id
}

// Validate rejects tuples that cannot be stored. Conditions outside the
// closed set are refused here so that derivation never sees them.
func (id Identity) Validate() error {
	if id.NameBase == "" {
		return fmt.Errorf("%w: name_base is required", ErrInvalidIdentity)
	}
	if id.Condition != nil && !id.Condition.Valid() {
		return fmt.Errorf("%w: condition %q is not a wear grade", ErrInvalidIdentity, *id.Condition)
	}
	return nil
}

// VariantKey fingerprints the tuple. Nulls are encoded explicitly so the
// unique index on variant_key treats two null conditions as equal.
func (id Identity) VariantKey() string {
	const sep = "\x1f"
	field := func(s *string) string {
		if s == nil {
			return "\x00"
		}
		return *s
	}
	var cond *string
	if id.Condition != nil {
		c := string(*id.Condition)
		cond = &c
	}
	raw := strings.Join([]string{
		id.NameBase,
		fmt.Sprintf("%t", id.StatTrak),
		fmt.Sprintf("%t", id.Souvenir),
		field(cond),
		field(id.Phase),
	}, sep)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Item is the stored identity row.
type Item struct {
	ItemKey     string     `json:"item_key" gorm:"primaryKey;size:26"`
	VariantKey  string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	NameBase    string     `json:"name_base" gorm:"size:255;index;not null"`
	StatTrak    bool       `json:"stattrak" gorm:"not null;default:false"`
	Souvenir    bool       `json:"souvenir" gorm:"not null;default:false"`
	Condition   *Condition `json:"condition" gorm:"size:32"`
	Phase       *string    `json:"phase" gorm:"size:64"`
	DisplayName string     `json:"display_name" gorm:"size:320;index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Item) TableName() string { return "items" }

func (it Item) Identity() Identity {
	return Identity{
		NameBase:  it.NameBase,
		StatTrak:  it.StatTrak,
		Souvenir:  it.Souvenir,
		Condition: it.Condition,
		Phase:     it.Phase,
	}
}

// BeforeSave keeps the cached display_name and variant_key in step with the identity columns.
func (it *Item) BeforeSave(tx *gorm.DB) error {
	id := it.Identity()
	it.VariantKey = id.VariantKey()
	it.DisplayName = id.DisplayName()
	return nil
}
