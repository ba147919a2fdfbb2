package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownSource      = errors.New("unknown source")
	ErrUnknownItem        = errors.New("unknown item")
	ErrIdentityConflict   = errors.New("identity conflict")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrInvalidObservation = errors.New("invalid observation")
	ErrNotFound           = errors.New("not found")
)

// UnknownSourceError rejects a source outside the closed marketplace set.
type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q", e.Source)
}

func (e *UnknownSourceError) Unwrap() error { return ErrUnknownSource }

// UnknownItemError means the item_key was never resolved through ResolveOrCreate.
type UnknownItemError struct {
	ItemKey string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item %q", e.ItemKey)
}

func (e *UnknownItemError) Unwrap() error { return ErrUnknownItem }

// IdentityConflictError reports that a concurrent creator won the unique
// variant_key index. The loser re-fetches the existing identity.
type IdentityConflictError struct {
	VariantKey string
	Err        error
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identity conflict on variant %s: %v", e.VariantKey, e.Err)
}

func (e *IdentityConflictError) Unwrap() []error { return []error{ErrIdentityConflict, e.Err} }

// InvariantViolation flags two observations sharing (item, source, observed_at).
type InvariantViolation struct {
	ItemKey    string
	Source     Source
	ObservedAt time.Time
	Err        error
}

func (e *InvariantViolation) Error() string {
	msg := fmt.Sprintf("duplicate observation for item %s source %s at %s",
		e.ItemKey, e.Source, e.ObservedAt.Format(time.RFC3339Nano))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvariantViolation) Unwrap() error { return ErrInvariantViolation }
