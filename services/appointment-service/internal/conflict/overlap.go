package conflict

import "github.com/lexconnect/lexconnect/services/appointment-service/internal/model"

// Interval is a half-open [Start, End) range of minutes within one day.
type Interval struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func IntervalOf(a model.Appointment) Interval {
	return Interval{Start: a.Time, End: a.End()}
}

// OverlapFinder picks the blocking appointment for a candidate window. The
// linear scan is enough for a single lawyer-day; an interval tree can replace
// it without touching callers.
type OverlapFinder interface {
	// FindOverlap returns the earliest (by time, then id) appointment in booked that
	// overlaps window, skipping excludeID.
	FindOverlap(booked []model.Appointment, window Interval, excludeID string) (model.Appointment, bool)
}

type LinearScan struct{}

func (LinearScan) FindOverlap(booked []model.Appointment, window Interval, excludeID string) (model.Appointment, bool) {
	var best model.Appointment
	found := false
	for _, a := range booked {
		if a.Status != model.StatusScheduled || (excludeID != "" && a.ID == excludeID) {
			continue
		}
		if !IntervalOf(a).Overlaps(window) {
			continue
		}
		if !found || a.Time < best.Time || (a.Time == best.Time && a.ID < best.ID) {
			best = a
			found = true
		}
	}
	return best, found
}
