package model

import "fmt"

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type PastDateError struct {
	At  Moment
	Now Moment
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("appointment at %s is in the past (now %s)", e.At, e.Now)
}

type ConflictError struct {
	ConflictingID string
}

func (e *ConflictError) Error() string {
	if e.ConflictingID == "" {
		return "time slot overlaps an existing appointment"
	}
	return "time slot overlaps appointment " + e.ConflictingID
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointment %s not found", e.ID)
}

type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "forbidden: " + e.Reason
}
