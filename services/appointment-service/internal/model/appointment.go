package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

const (
	DefaultDurationMinutes = 60
	MaxDurationMinutes     = MinutesPerDay
)

type ClientRef struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Appointment struct {
	ID              string
	Client          ClientRef
	LawyerRef       string
	CaseType        string
	LawyerType      string
	Date            Date
	Time            TimeOfDay
	DurationMinutes int
	Notes           string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End is the exclusive end of the booked window.
func (a Appointment) End() TimeOfDay {
	return a.Time + TimeOfDay(a.DurationMinutes)
}

func (a Appointment) Start() Moment {
	return Moment{Date: a.Date, Time: a.Time}
}

// Slot returns the lock key guarding a's lawyer calendar on its date.
func (a Appointment) Slot() SlotKey {
	return SlotKey{LawyerRef: a.LawyerRef, Date: a.Date}
}

// Draft is an unvalidated booking request. Date and Time are kept as sent so
// that parsing errors surface as validation errors from the store.
type Draft struct {
	Client          ClientRef
	LawyerRef       string
	CaseType        string
	LawyerType      string
	Date            string
	Time            string
	DurationMinutes int
	Notes           string
}

// Patch carries the fields a client may change; nil means "leave as is".
type Patch struct {
	Status *string
	Date   *string
	Time   *string
	Notes  *string
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.Date == nil && p.Time == nil && p.Notes == nil
}

// WriteOptions carry caller capabilities that relax store validation.
type WriteOptions struct {
	// AllowPast lets administrators back-fill appointments that already happened.
	AllowPast bool
}

// SlotKey identifies one lawyer's calendar on one date.
type SlotKey struct {
	LawyerRef string
	Date      Date
}

func (k SlotKey) String() string { return k.LawyerRef + "|" + k.Date.String() }

// DateRange is inclusive on both ends; a zero bound is open.
type DateRange struct {
	From Date
	To   Date
}

func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

type Role string

const (
	RoleClient Role = "client"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleClient, RoleLawyer, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Matches reports whether an appointment booked for c belongs to the client
// identified by who. Account ids win; bookings made before the client had an
// account fall back to a case-insensitive email match.
func (c ClientRef) Matches(who ClientRef) bool {
	if who.ID != "" && c.ID != "" {
		return c.ID == who.ID
	}
	return who.Email != "" && strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(who.Email))
}
