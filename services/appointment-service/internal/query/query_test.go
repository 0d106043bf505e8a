package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/storage"
)

func asOf(t *testing.T, raw string) model.Moment {
	t.Helper()
	m, err := model.ParseMoment(raw)
	if err != nil {
		t.Fatalf("ParseMoment: %v", err)
	}
	return m
}

func seed(t *testing.T) *storage.Memory {
	t.Helper()
	s := storage.NewMemory(storage.Options{Clock: func() time.Time { return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC) }})
	ctx := context.Background()
	book := func(date, tod string, dur int) {
		_, err := s.Create(ctx, model.Draft{
			Client:          model.ClientRef{ID: "c1", Name: "Dana", Email: "dana@example.com"},
			LawyerRef:       "L1",
			CaseType:        "tenancy",
			LawyerType:      "civil",
			Date:            date,
			Time:            tod,
			DurationMinutes: dur,
		}, model.WriteOptions{})
		if err != nil {
			t.Fatalf("seed %s %s: %v", date, tod, err)
		}
	}
	book("2024-06-10", "10:00", 60)
	book("2024-06-10", "11:00", 30)
	book("2024-06-11", "09:00", 60)
	return s
}

func TestSummarizeTodayUpcoming(t *testing.T) {
	svc := NewService(seed(t))
	sum, err := svc.Summarize(context.Background(), LawyerSubject("L1"), asOf(t, "2024-06-10T09:00"))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := Summary{Today: 2, Upcoming: 1, Completed: 0, All: 3}
	if sum != want {
		t.Fatalf("got %+v want %+v", sum, want)
	}

	sum, _ = svc.Summarize(context.Background(), LawyerSubject("L1"), asOf(t, "2024-06-12T09:00"))
	if sum.PastDue != 3 || sum.Today != 0 || sum.All != 3 {
		t.Fatalf("expected everything past due on 06-12, got %+v", sum)
	}
}

func TestFilterTabsAndSort(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	list, _ := s.ListByLawyer(ctx, "L1", model.DateRange{})
	var first string
	for _, a := range list {
		if a.Time.String() == "10:00" {
			first = a.ID
		}
	}
	status := "completed"
	if _, _, err := s.Update(ctx, first, model.Patch{Status: &status}, model.WriteOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	svc := NewService(s)
	now := asOf(t, "2024-06-10T09:00")

	cases := map[string][]string{
		"today":           {"2024-06-10 11:00"},
		"upcoming":        {"2024-06-11 09:00"},
		"completed":       {"2024-06-10 10:00"},
		"all":             {"2024-06-10 10:00", "2024-06-10 11:00", "2024-06-11 09:00"},
		"":                {"2024-06-10 10:00", "2024-06-10 11:00", "2024-06-11 09:00"},
		"date:2024-06-11": {"2024-06-11 09:00"},
		"past_due":        {},
		"cancelled":       {},
	}
	for raw, want := range cases {
		tab, err := ParseTab(raw)
		if err != nil {
			t.Fatalf("ParseTab(%q): %v", raw, err)
		}
		got, err := svc.Filter(ctx, LawyerSubject("L1"), now, tab)
		if err != nil {
			t.Fatalf("Filter(%q): %v", raw, err)
		}
		if len(got) != len(want) {
			t.Fatalf("tab %q: got %d items, want %d", raw, len(got), len(want))
		}
		for i, a := range got {
			if key := a.Date.String() + " " + a.Time.String(); key != want[i] {
				t.Fatalf("tab %q item %d: got %s want %s", raw, i, key, want[i])
			}
		}
	}
}

func TestClientSubject(t *testing.T) {
	svc := NewService(seed(t))
	sum, err := svc.Summarize(context.Background(), ClientSubject(model.ClientRef{ID: "c1"}), asOf(t, "2024-06-10T09:00"))
	if err != nil || sum.All != 3 {
		t.Fatalf("expected client to see 3 bookings, got %+v %v", sum, err)
	}
	sum, _ = svc.Summarize(context.Background(), ClientSubject(model.ClientRef{ID: "c2"}), asOf(t, "2024-06-10T09:00"))
	if sum.All != 0 {
		t.Fatalf("another client must see nothing, got %+v", sum)
	}
}

func TestParseTabRejectsUnknown(t *testing.T) {
	var verr *model.ValidationError
	for _, raw := range []string{"tomorrow", "date:2024-99-01"} {
		if _, err := ParseTab(raw); !errors.As(err, &verr) || verr.Field != "tab" {
			t.Fatalf("%q: expected tab validation error, got %v", raw, err)
		}
	}
}

func TestSortTieBreaksByID(t *testing.T) {
	d := model.Date{Year: 2024, Month: time.June, Day: 10}
	list := []model.Appointment{
		{ID: "b", Date: d, Time: 600},
		{ID: "a", Date: d, Time: 600},
		{ID: "c", Date: d, Time: 540},
	}
	Sort(list)
	if list[0].ID != "c" || list[1].ID != "a" || list[2].ID != "b" {
		t.Fatalf("unexpected order %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
}
