// Package lifecycle holds the appointment state machine and every rule that
// decides what a valid appointment record looks like. Store implementations
// call NewAppointment and ApplyPatch so the invariants live in one place.
package lifecycle

import (
	"net/mail"
	"strings"
	"time"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

// Transition validates a status change. Repeating the current status is allowed.
func Transition(from, to model.Status) error {
	if from == to {
		return nil
	}
	if from == model.StatusScheduled && to.Terminal() {
		return nil
	}
	return &model.InvalidTransitionError{From: from, To: to}
}

// NewAppointment validates d and builds the initial scheduled record.
// at is the current practice-local minute, stamp the UTC creation time.
func NewAppointment(id string, d model.Draft, at model.Moment, stamp time.Time, opts model.WriteOptions) (model.Appointment, error) {
	client := model.ClientRef{
		ID:    strings.TrimSpace(d.Client.ID),
		Name:  strings.TrimSpace(d.Client.Name),
		Email: strings.TrimSpace(d.Client.Email),
	}
	switch {
	case client.Name == "":
		return model.Appointment{}, model.Invalid("client.name", "is required")
	case client.Email == "":
		return model.Appointment{}, model.Invalid("client.email", "is required")
	}
	if _, err := mail.ParseAddress(client.Email); err != nil {
		return model.Appointment{}, model.Invalid("client.email", "is not a valid address")
	}

	caseType := strings.TrimSpace(d.CaseType)
	lawyerType := strings.TrimSpace(d.LawyerType)
	if caseType == "" {
		return model.Appointment{}, model.Invalid("case_type", "is required")
	}
	if lawyerType == "" {
		return model.Appointment{}, model.Invalid("lawyer_type", "is required")
	}

	date, tod, err := parseSlot(d.Date, d.Time)
	if err != nil {
		return model.Appointment{}, err
	}

	duration := d.DurationMinutes
	if duration == 0 {
		duration = model.DefaultDurationMinutes
	}
	if err := checkWindow(tod, duration); err != nil {
		return model.Appointment{}, err
	}

	start := model.Moment{Date: date, Time: tod}
	if !opts.AllowPast && start.Before(at) {
		return model.Appointment{}, &model.PastDateError{At: start, Now: at}
	}

	stamp = stamp.UTC()
	return model.Appointment{
		ID:              id,
		Client:          client,
		LawyerRef:       strings.TrimSpace(d.LawyerRef),
		CaseType:        caseType,
		LawyerType:      lawyerType,
		Date:            date,
		Time:            tod,
		DurationMinutes: duration,
		Notes:           strings.TrimSpace(d.Notes),
		Status:          model.StatusScheduled,
		CreatedAt:       stamp,
		UpdatedAt:       stamp,
	}, nil
}

// Change names what ApplyPatch did to a record.
type Change string

const (
	ChangeNone        Change = "none"
	ChangeUpdated     Change = "updated"
	ChangeRescheduled Change = "rescheduled"
	ChangeCompleted   Change = "completed"
	ChangeCancelled   Change = "cancelled"
)

// ApplyPatch returns the record that results from applying p to cur. It does not
// check for calendar conflicts; callers do that for ChangeRescheduled.
func ApplyPatch(cur model.Appointment, p model.Patch, at model.Moment, stamp time.Time, opts model.WriteOptions) (model.Appointment, Change, error) {
	if p.Empty() {
		return cur, ChangeNone, model.Invalid("patch", "at least one of status, date, time or notes is required")
	}

	target := cur.Status
	if p.Status != nil {
		s, err := model.ParseStatus(*p.Status)
		if err != nil {
			return cur, ChangeNone, model.Invalid("status", "must be scheduled, completed or cancelled")
		}
		target = s
	}
	if err := Transition(cur.Status, target); err != nil {
		return cur, ChangeNone, err
	}

	next := cur
	change := ChangeNone

	moved, err := applySlot(&next, p)
	if err != nil {
		return cur, ChangeNone, err
	}
	if moved {
		switch {
		case cur.Status.Terminal():
			return cur, ChangeNone, &model.InvalidTransitionError{From: cur.Status, To: model.StatusScheduled}
		case target.Terminal():
			return cur, ChangeNone, model.Invalid("status", "date and time cannot change while completing or cancelling")
		}
		if !opts.AllowPast && next.Start().Before(at) {
			return cur, ChangeNone, &model.PastDateError{At: next.Start(), Now: at}
		}
		change = ChangeRescheduled
	}

	if target != cur.Status {
		next.Status = target
		if target == model.StatusCompleted {
			change = ChangeCompleted
		} else {
			change = ChangeCancelled
		}
	}

	if p.Notes != nil {
		notes := strings.TrimSpace(*p.Notes)
		if notes != cur.Notes {
			next.Notes = notes
			if change == ChangeNone {
				change = ChangeUpdated
			}
		}
	}

	if change != ChangeNone {
		next.UpdatedAt = stamp.UTC()
	}
	return next, change, nil
}

// applySlot writes patched date/time into a and reports whether the slot moved.
func applySlot(a *model.Appointment, p model.Patch) (bool, error) {
	if p.Date == nil && p.Time == nil {
		return false, nil
	}
	date, tod := a.Date, a.Time
	if p.Date != nil {
		d, err := model.ParseDate(*p.Date)
		if err != nil {
			return false, model.Invalid("date", err.Error())
		}
		date = d
	}
	if p.Time != nil {
		t, err := model.ParseTimeOfDay(*p.Time)
		if err != nil {
			return false, model.Invalid("time", err.Error())
		}
		tod = t
	}
	if date == a.Date && tod == a.Time {
		return false, nil
	}
	if err := checkWindow(tod, a.DurationMinutes); err != nil {
		return false, err
	}
	a.Date, a.Time = date, tod
	return true, nil
}

func parseSlot(rawDate, rawTime string) (model.Date, model.TimeOfDay, error) {
	if strings.TrimSpace(rawDate) == "" {
		return model.Date{}, 0, model.Invalid("date", "is required")
	}
	if strings.TrimSpace(rawTime) == "" {
		return model.Date{}, 0, model.Invalid("time", "is required")
	}
	date, err := model.ParseDate(rawDate)
	if err != nil {
		return model.Date{}, 0, model.Invalid("date", err.Error())
	}
	tod, err := model.ParseTimeOfDay(rawTime)
	if err != nil {
		return model.Date{}, 0, model.Invalid("time", err.Error())
	}
	return date, tod, nil
}

// checkWindow keeps [start, start+duration) inside a single calendar day.
func checkWindow(start model.TimeOfDay, duration int) error {
	if duration < 1 || duration > model.MaxDurationMinutes {
		return model.Invalid("duration_minutes", "must be between 1 and 1440")
	}
	if int(start)+duration > model.MinutesPerDay {
		return model.Invalid("duration_minutes", "appointment must end by midnight")
	}
	return nil
}
