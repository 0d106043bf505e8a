// Package conflict decides whether a lawyer is free for a requested window.
package conflict

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

// Source is the read the checker needs; storage transactions and the store satisfy it.
type Source interface {
	ListScheduledOn(ctx context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error)
}

type Query struct {
	LawyerRef       string
	Date            model.Date
	Time            model.TimeOfDay
	DurationMinutes int
	// ExcludeID skips the appointment being rescheduled.
	ExcludeID string
}

type Result struct {
	OK            bool
	ConflictingID string
}

// Err converts a negative result into a *model.ConflictError.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &model.ConflictError{ConflictingID: r.ConflictingID}
}

type Checker struct {
	finder OverlapFinder
}

func NewChecker(finder OverlapFinder) *Checker {
	if finder == nil {
		finder = LinearScan{}
	}
	return &Checker{finder: finder}
}

// Check reports whether q fits the lawyer's calendar. Without a lawyer there is
// nothing to collide with. Callers hold the slot lock so the answer stays true
// until they write.
func (c *Checker) Check(ctx context.Context, src Source, q Query) (Result, error) {
	if strings.TrimSpace(q.LawyerRef) == "" {
		return Result{OK: true}, nil
	}
	booked, err := src.ListScheduledOn(ctx, q.LawyerRef, q.Date)
	if err != nil {
		return Result{}, fmt.Errorf("load lawyer calendar: %w", err)
	}
	window := Interval{Start: q.Time, End: q.Time + model.TimeOfDay(q.DurationMinutes)}
	if hit, ok := c.finder.FindOverlap(booked, window, q.ExcludeID); ok {
		return Result{OK: false, ConflictingID: hit.ID}, nil
	}
	return Result{OK: true}, nil
}
