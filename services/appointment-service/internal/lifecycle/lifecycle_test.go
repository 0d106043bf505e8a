package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

var (
	stamp = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	now   = model.Moment{Date: model.Date{Year: 2024, Month: time.June, Day: 10}, Time: 8 * 60}
)

func strp(s string) *string { return &s }

func validDraft() model.Draft {
	return model.Draft{
		Client:     model.ClientRef{ID: "c1", Name: "Dana Client", Email: "dana@example.com"},
		LawyerRef:  "L1",
		CaseType:   "family",
		LawyerType: "family",
		Date:       "2024-06-10",
		Time:       "10:00",
	}
}

func scheduled(t *testing.T) model.Appointment {
	t.Helper()
	a, err := NewAppointment("a1", validDraft(), now, stamp, model.WriteOptions{})
	if err != nil {
		t.Fatalf("NewAppointment: %v", err)
	}
	return a
}

func TestNewAppointmentDefaults(t *testing.T) {
	a := scheduled(t)
	if a.Status != model.StatusScheduled || a.DurationMinutes != 60 {
		t.Fatalf("unexpected defaults %+v", a)
	}
	if !a.CreatedAt.Equal(stamp) || !a.UpdatedAt.Equal(stamp) {
		t.Fatalf("timestamps not set: %+v", a)
	}
	if a.Time.String() != "10:00" || a.End().String() != "11:00" {
		t.Fatalf("unexpected window %s-%s", a.Time, a.End())
	}
}

func TestNewAppointmentValidation(t *testing.T) {
	cases := map[string]func(*model.Draft){
		"client.name":      func(d *model.Draft) { d.Client.Name = " " },
		"client.email":     func(d *model.Draft) { d.Client.Email = "not-an-email" },
		"case_type":        func(d *model.Draft) { d.CaseType = "" },
		"lawyer_type":      func(d *model.Draft) { d.LawyerType = "" },
		"date":             func(d *model.Draft) { d.Date = "2024-13-01" },
		"time":             func(d *model.Draft) { d.Time = "" },
		"duration_minutes": func(d *model.Draft) { d.Time = "23:30"; d.DurationMinutes = 45 },
	}
	for field, mutate := range cases {
		d := validDraft()
		mutate(&d)
		_, err := NewAppointment("x", d, now, stamp, model.WriteOptions{})
		var verr *model.ValidationError
		if !errors.As(err, &verr) || verr.Field != field {
			t.Fatalf("%s: expected validation error on field, got %v", field, err)
		}
	}

	d := validDraft()
	d.DurationMinutes = 2000
	if _, err := NewAppointment("x", d, now, stamp, model.WriteOptions{}); err == nil {
		t.Fatal("expected duration above a day to be rejected")
	}
}

func TestNewAppointmentPastDate(t *testing.T) {
	d := validDraft()
	d.Date = "2024-06-09"
	_, err := NewAppointment("x", d, now, stamp, model.WriteOptions{})
	var perr *model.PastDateError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PastDateError, got %v", err)
	}

	d = validDraft()
	d.Time = "07:59"
	if _, err := NewAppointment("x", d, now, stamp, model.WriteOptions{}); !errors.As(err, &perr) {
		t.Fatalf("elapsed slot today should be past, got %v", err)
	}

	d.Time = "08:00"
	if _, err := NewAppointment("x", d, now, stamp, model.WriteOptions{}); err != nil {
		t.Fatalf("current minute should be accepted: %v", err)
	}

	d.Date = "2020-01-01"
	if _, err := NewAppointment("x", d, now, stamp, model.WriteOptions{AllowPast: true}); err != nil {
		t.Fatalf("admin back-fill should be accepted: %v", err)
	}
}

func TestTransition(t *testing.T) {
	ok := [][2]model.Status{
		{model.StatusScheduled, model.StatusScheduled},
		{model.StatusScheduled, model.StatusCompleted},
		{model.StatusScheduled, model.StatusCancelled},
		{model.StatusCompleted, model.StatusCompleted},
		{model.StatusCancelled, model.StatusCancelled},
	}
	for _, tc := range ok {
		if err := Transition(tc[0], tc[1]); err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", tc[0], tc[1], err)
		}
	}
	bad := [][2]model.Status{
		{model.StatusCompleted, model.StatusScheduled},
		{model.StatusCompleted, model.StatusCancelled},
		{model.StatusCancelled, model.StatusScheduled},
		{model.StatusCancelled, model.StatusCompleted},
	}
	for _, tc := range bad {
		var terr *model.InvalidTransitionError
		if err := Transition(tc[0], tc[1]); !errors.As(err, &terr) || terr.From != tc[0] || terr.To != tc[1] {
			t.Fatalf("%s -> %s should be rejected, got %v", tc[0], tc[1], err)
		}
	}
}

func TestApplyPatchComplete(t *testing.T) {
	cur := scheduled(t)
	later := stamp.Add(time.Hour)

	next, change, err := ApplyPatch(cur, model.Patch{Status: strp("completed")}, now, later, model.WriteOptions{})
	if err != nil || change != ChangeCompleted {
		t.Fatalf("complete: %v %s", err, change)
	}
	if next.Status != model.StatusCompleted || !next.UpdatedAt.Equal(later) || !next.CreatedAt.Equal(cur.CreatedAt) {
		t.Fatalf("unexpected record %+v", next)
	}

	again, change, err := ApplyPatch(next, model.Patch{Status: strp("completed")}, now, later.Add(time.Hour), model.WriteOptions{})
	if err != nil || change != ChangeNone || !again.UpdatedAt.Equal(later) {
		t.Fatalf("repeat complete should be a no-op: %v %s", err, change)
	}

	_, _, err = ApplyPatch(next, model.Patch{Status: strp("cancelled")}, now, later, model.WriteOptions{})
	var terr *model.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("completed -> cancelled must fail, got %v", err)
	}
	_, _, err = ApplyPatch(next, model.Patch{Date: strp("2024-06-12")}, now, later, model.WriteOptions{})
	if !errors.As(err, &terr) {
		t.Fatalf("rescheduling a completed appointment must fail, got %v", err)
	}

	notes, change, err := ApplyPatch(next, model.Patch{Notes: strp("closing memo")}, now, later, model.WriteOptions{})
	if err != nil || change != ChangeUpdated || notes.Notes != "closing memo" {
		t.Fatalf("notes on terminal appointment: %v %s", err, change)
	}
}

func TestApplyPatchReschedule(t *testing.T) {
	cur := scheduled(t)

	next, change, err := ApplyPatch(cur, model.Patch{Status: strp("scheduled"), Date: strp("2024-06-12"), Time: strp("14:00")}, now, stamp, model.WriteOptions{})
	if err != nil || change != ChangeRescheduled {
		t.Fatalf("reschedule: %v %s", err, change)
	}
	if next.Date.String() != "2024-06-12" || next.Time.String() != "14:00" || next.Status != model.StatusScheduled {
		t.Fatalf("unexpected record %+v", next)
	}

	var perr *model.PastDateError
	if _, _, err := ApplyPatch(cur, model.Patch{Date: strp("2024-06-01")}, now, stamp, model.WriteOptions{}); !errors.As(err, &perr) {
		t.Fatalf("expected PastDateError, got %v", err)
	}

	var verr *model.ValidationError
	if _, _, err := ApplyPatch(cur, model.Patch{Status: strp("cancelled"), Time: strp("15:00")}, now, stamp, model.WriteOptions{}); !errors.As(err, &verr) {
		t.Fatalf("cancel plus move should be a validation error, got %v", err)
	}
	if _, _, err := ApplyPatch(cur, model.Patch{Time: strp("23:30")}, now, stamp, model.WriteOptions{}); !errors.As(err, &verr) {
		t.Fatalf("window past midnight should be rejected, got %v", err)
	}
	if _, _, err := ApplyPatch(cur, model.Patch{}, now, stamp, model.WriteOptions{}); !errors.As(err, &verr) {
		t.Fatalf("empty patch should be rejected, got %v", err)
	}
	if _, _, err := ApplyPatch(cur, model.Patch{Status: strp("archived")}, now, stamp, model.WriteOptions{}); !errors.As(err, &verr) {
		t.Fatalf("unknown status should be rejected, got %v", err)
	}

	same, change, err := ApplyPatch(cur, model.Patch{Date: strp("2024-06-10"), Time: strp("10:00")}, now, stamp.Add(time.Hour), model.WriteOptions{})
	if err != nil || change != ChangeNone || !same.UpdatedAt.Equal(cur.UpdatedAt) {
		t.Fatalf("unchanged slot should be a no-op: %v %s", err, change)
	}
}

func TestClassify(t *testing.T) {
	asOf := model.Moment{Date: model.Date{Year: 2024, Month: time.June, Day: 10}, Time: 9 * 60}
	mk := func(date string, tod model.TimeOfDay, s model.Status) model.Appointment {
		d, _ := model.ParseDate(date)
		return model.Appointment{Date: d, Time: tod, Status: s, DurationMinutes: 60}
	}

	cases := []struct {
		a    model.Appointment
		want Category
	}{
		{mk("2024-06-10", 7*60, model.StatusScheduled), CategoryToday},
		{mk("2024-06-10", 17*60, model.StatusScheduled), CategoryToday},
		{mk("2024-06-11", 0, model.StatusScheduled), CategoryUpcoming},
		{mk("2024-06-09", 23*60, model.StatusScheduled), CategoryPastDue},
		{mk("2024-06-09", 10*60, model.StatusCompleted), CategoryCompleted},
		{mk("2024-06-10", 10*60, model.StatusCompleted), CategoryCompleted},
		{mk("2024-06-12", 10*60, model.StatusCancelled), CategoryCancelled},
	}
	for i, tc := range cases {
		got := Classify(tc.a, asOf)
		if got != tc.want {
			t.Fatalf("case %d: got %s want %s", i, got, tc.want)
		}
		if again := Classify(tc.a, asOf); again != got {
			t.Fatalf("case %d: classify is not stable", i)
		}
	}
}

func TestAllowed(t *testing.T) {
	if !Allowed(model.RoleClient, ActionReschedule) || Allowed(model.RoleClient, ActionComplete) {
		t.Fatal("client permissions mismatch")
	}
	if !Allowed(model.RoleLawyer, ActionComplete) || Allowed(model.RoleLawyer, ActionReschedule) {
		t.Fatal("lawyer permissions mismatch")
	}
	if !Allowed(model.RoleAdmin, ActionReschedule) || !Allowed(model.RoleAdmin, ActionComplete) {
		t.Fatal("admin should be allowed everything")
	}
	if Allowed(model.Role("guest"), ActionView) {
		t.Fatal("unknown role must be denied")
	}

	cur := model.Appointment{Status: model.StatusScheduled}
	got := ActionsFor(cur, model.Patch{Status: strp("cancelled"), Notes: strp("x")})
	if len(got) != 2 || got[0] != ActionCancel || got[1] != ActionEditNotes {
		t.Fatalf("unexpected actions %v", got)
	}
	if got := ActionsFor(cur, model.Patch{Status: strp("scheduled"), Date: strp("2024-06-11")}); len(got) != 1 || got[0] != ActionReschedule {
		t.Fatalf("unexpected actions %v", got)
	}
}
