package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

var june10 = model.Date{Year: 2024, Month: time.June, Day: 10}

type calendar []model.Appointment

func (c calendar) ListScheduledOn(_ context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range c {
		if a.LawyerRef == lawyerRef && a.Date == date && a.Status == model.StatusScheduled {
			out = append(out, a)
		}
	}
	return out, nil
}

func appt(id string, hh, mm, dur int) model.Appointment {
	return model.Appointment{
		ID:              id,
		LawyerRef:       "L1",
		Date:            june10,
		Time:            model.TimeOfDay(hh*60 + mm),
		DurationMinutes: dur,
		Status:          model.StatusScheduled,
	}
}

func query(hh, mm, dur int) Query {
	return Query{LawyerRef: "L1", Date: june10, Time: model.TimeOfDay(hh*60 + mm), DurationMinutes: dur}
}

func TestCheckOverlapAndAdjacency(t *testing.T) {
	c := NewChecker(nil)
	cal := calendar{appt("a1", 10, 0, 60)}
	ctx := context.Background()

	res, err := c.Check(ctx, cal, query(10, 30, 60))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.OK || res.ConflictingID != "a1" {
		t.Fatalf("expected conflict with a1, got %+v", res)
	}
	var cerr *model.ConflictError
	if !errors.As(res.Err(), &cerr) || cerr.ConflictingID != "a1" {
		t.Fatalf("unexpected error %v", res.Err())
	}

	res, err = c.Check(ctx, cal, query(11, 0, 30))
	if err != nil || !res.OK {
		t.Fatalf("adjacent booking should be free: %+v %v", res, err)
	}
	res, err = c.Check(ctx, cal, query(9, 0, 60))
	if err != nil || !res.OK {
		t.Fatalf("booking ending at 10:00 should be free: %+v %v", res, err)
	}
	res, _ = c.Check(ctx, cal, query(9, 30, 180))
	if res.OK {
		t.Fatal("enclosing window must conflict")
	}
}

func TestCheckEarliestConflictWins(t *testing.T) {
	cal := calendar{appt("b", 11, 0, 60), appt("z", 10, 0, 30), appt("a", 10, 0, 30)}
	res, err := NewChecker(LinearScan{}).Check(context.Background(), cal, query(9, 0, 180))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.ConflictingID != "a" {
		t.Fatalf("expected earliest (time, id) conflict a, got %q", res.ConflictingID)
	}
}

func TestCheckSkipsExcludedCancelledAndUnassigned(t *testing.T) {
	cancelled := appt("c", 10, 0, 60)
	cancelled.Status = model.StatusCancelled
	cal := calendar{appt("self", 10, 0, 60), cancelled}
	c := NewChecker(nil)

	q := query(10, 15, 60)
	q.ExcludeID = "self"
	if res, err := c.Check(context.Background(), cal, q); err != nil || !res.OK {
		t.Fatalf("excluded appointment should not block itself: %+v %v", res, err)
	}

	q = query(10, 0, 60)
	q.LawyerRef = ""
	if res, err := c.Check(context.Background(), cal, q); err != nil || !res.OK {
		t.Fatalf("unassigned lawyer never conflicts: %+v %v", res, err)
	}
}

func TestAvailableSlots(t *testing.T) {
	booked := []model.Appointment{appt("a1", 9, 15, 30)}
	window := Interval{Start: 9 * 60, End: 10 * 60}

	slots := AvailableSlots(window, 15, 15, booked, june10, model.Moment{})
	if len(slots) != 2 || slots[0].String() != "09:00" || slots[1].String() != "09:45" {
		t.Fatalf("unexpected slots %v", slots)
	}

	notBefore := model.Moment{Date: june10, Time: 9*60 + 31}
	slots = AvailableSlots(window, 15, 15, nil, june10, notBefore)
	if len(slots) != 1 || slots[0].String() != "09:45" {
		t.Fatalf("expected only 09:45 after 09:31, got %v", slots)
	}

	if AvailableSlots(Interval{Start: 23 * 60, End: 26 * 60}, 90, 30, nil, june10, model.Moment{}) != nil {
		t.Fatal("window is clipped at midnight, 90 minutes cannot fit after 23:00")
	}
}

func TestFreeSlotsUsesSource(t *testing.T) {
	cal := calendar{appt("a1", 10, 0, 60)}
	slots, err := NewChecker(nil).FreeSlots(context.Background(), cal, SlotQuery{
		LawyerRef:       "L1",
		Date:            june10,
		Window:          Interval{Start: 9 * 60, End: 12 * 60},
		DurationMinutes: 60,
		StepMinutes:     30,
	})
	if err != nil {
		t.Fatalf("FreeSlots: %v", err)
	}
	want := []string{"09:00", "11:00"}
	if len(slots) != len(want) {
		t.Fatalf("unexpected slots %v", slots)
	}
	for i := range want {
		if slots[i].String() != want[i] {
			t.Fatalf("slot %d: got %s want %s", i, slots[i], want[i])
		}
	}
}
