package conflict

import (
	"context"
	"fmt"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

// SlotQuery describes the free-slot search for one lawyer-day.
type SlotQuery struct {
	LawyerRef       string
	Date            model.Date
	Window          Interval
	DurationMinutes int
	StepMinutes     int
	// NotBefore hides starts earlier than this moment; zero shows all.
	NotBefore model.Moment
}

// FreeSlots lists start times within q.Window where a booking of the requested
// length would not overlap any scheduled appointment.
func (c *Checker) FreeSlots(ctx context.Context, src Source, q SlotQuery) ([]model.TimeOfDay, error) {
	var booked []model.Appointment
	if q.LawyerRef != "" {
		var err error
		booked, err = src.ListScheduledOn(ctx, q.LawyerRef, q.Date)
		if err != nil {
			return nil, fmt.Errorf("load lawyer calendar: %w", err)
		}
	}
	return AvailableSlots(q.Window, q.DurationMinutes, q.StepMinutes, booked, q.Date, q.NotBefore), nil
}

// AvailableSlots is the pure part of FreeSlots.
func AvailableSlots(window Interval, duration, step int, booked []model.Appointment, date model.Date, notBefore model.Moment) []model.TimeOfDay {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if window.End > model.MinutesPerDay {
		window.End = model.MinutesPerDay
	}
	d := model.TimeOfDay(duration)
	if window.Start+d > window.End {
		return nil
	}

	busy := make([]Interval, 0, len(booked))
	for _, a := range booked {
		if a.Status == model.StatusScheduled {
			busy = append(busy, IntervalOf(a))
		}
	}

	var slots []model.TimeOfDay
	for t := window.Start; t+d <= window.End; t += model.TimeOfDay(step) {
		if (notBefore != model.Moment{}) && (model.Moment{Date: date, Time: t}).Before(notBefore) {
			continue
		}
		if !overlapsAny(Interval{Start: t, End: t + d}, busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
