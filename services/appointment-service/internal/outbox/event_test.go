package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lexconnect/lexconnect/libs/kafkax"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

func TestNewAppointmentEventReschedule(t *testing.T) {
	prev := model.Appointment{
		ID:              "a1",
		LawyerRef:       "L1",
		Client:          model.ClientRef{ID: "c1", Name: "Dana", Email: "dana@example.com"},
		Date:            model.Date{Year: 2024, Month: time.June, Day: 10},
		Time:            600,
		DurationMinutes: 60,
		Status:          model.StatusScheduled,
		UpdatedAt:       time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC),
	}
	next := prev
	next.Date = model.Date{Year: 2024, Month: time.June, Day: 12}
	next.UpdatedAt = time.Date(2024, 6, 9, 13, 0, 0, 0, time.UTC)

	evt, err := NewAppointmentEvent(EventRescheduled, next, &prev, Actor{ID: "c1", Role: "client"})
	if err != nil {
		t.Fatalf("NewAppointmentEvent: %v", err)
	}
	if evt.EventID == "" || evt.AggregateID != "a1" || evt.EventType != EventRescheduled {
		t.Fatalf("unexpected envelope %+v", evt)
	}

	var p AppointmentPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Date != "2024-06-12" || p.PreviousDate != "2024-06-10" || p.PreviousTime != "10:00" || p.Client.Email != "dana@example.com" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.OccurredAt != "2024-06-09T13:00:00Z" {
		t.Fatalf("unexpected occurred_at %q", p.OccurredAt)
	}
}

func TestToMessageCarriesEventHeaders(t *testing.T) {
	msg := ToMessage(context.Background(), Record{EventID: "e1", AggregateID: "a1", EventType: EventBooked, Payload: []byte(`{}`)})
	if msg.Topic != EventBooked || string(msg.Key) != "a1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "e1" || meta.EventType != EventBooked {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
