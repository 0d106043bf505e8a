package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lexconnect/lexconnect/libs/kafkax"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/email"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type fakeSender struct {
	sent []email.Message
	err  error
}

func (s *fakeSender) ProviderID() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func event(t *testing.T, eventType string, p appointmentPayload) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	meta := kafkax.EventMeta{EventID: "evt-" + eventType, EventType: eventType}
	return kafka.Message{Topic: eventType, Value: raw, Headers: meta.Headers()}
}

func booked() appointmentPayload {
	return appointmentPayload{
		AppointmentID:   "a-1",
		LawyerRef:       "L1",
		Client:          client{ID: "c1", Name: "Dana", Email: "dana@example.com"},
		CaseType:        "tenancy",
		LawyerType:      "civil",
		Date:            "2024-06-10",
		Time:            "10:00",
		DurationMinutes: 60,
		Status:          "scheduled",
	}
}

func newHandler(sender email.Sender) (*Handler, *storage.Memory) {
	store := storage.NewMemory()
	return NewHandler(sender, store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestHandleSendsBookingEmail(t *testing.T) {
	sender := &fakeSender{}
	h, store := newHandler(sender)

	if err := h.Handle(context.Background(), event(t, EventBooked, booked())); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "dana@example.com" || msg.Subject != "Consultation booked for 2024-06-10 at 10:00" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.Body, "Hello Dana") || !strings.Contains(msg.Body, "Reference: a-1") {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	got := store.List()
	if len(got) != 1 || got[0].Status != storage.StatusSent || got[0].EventID != "evt-"+EventBooked {
		t.Fatalf("unexpected records %+v", got)
	}
}

func TestHandleRecordsFailuresAndSkips(t *testing.T) {
	h, store := newHandler(&fakeSender{err: errors.New("connection refused")})
	ctx := context.Background()

	if err := h.Handle(ctx, event(t, EventCancelled, booked())); err != nil {
		t.Fatalf("send failure should not be returned: %v", err)
	}
	if err := h.Handle(ctx, event(t, EventUpdated, booked())); err != nil {
		t.Fatalf("Handle updated: %v", err)
	}
	noEmail := booked()
	noEmail.Client.Email = ""
	if err := h.Handle(ctx, event(t, EventCompleted, noEmail)); err != nil {
		t.Fatalf("Handle no email: %v", err)
	}
	if err := h.Handle(ctx, kafka.Message{Topic: EventBooked, Value: []byte("{")}); err != nil {
		t.Fatalf("malformed payload should be dropped: %v", err)
	}

	got := store.List()
	want := []string{storage.StatusFailed, storage.StatusSkipped, storage.StatusSkipped}
	if len(got) != len(want) {
		t.Fatalf("records %+v, want %d", got, len(want))
	}
	for i, status := range want {
		if got[i].Status != status {
			t.Fatalf("record %d status %q, want %q", i, got[i].Status, status)
		}
	}
}

func TestComposeReschedule(t *testing.T) {
	p := booked()
	p.Time = "14:00"
	p.PreviousDate = "2024-06-10"
	p.PreviousTime = "10:00"
	subject, body, ok := compose(EventRescheduled, p)
	if !ok || subject != "Consultation moved to 2024-06-10 at 14:00" {
		t.Fatalf("subject %q ok=%v", subject, ok)
	}
	if !strings.Contains(body, "from 2024-06-10 at 10:00 to 2024-06-10 at 14:00") {
		t.Fatalf("unexpected body %q", body)
	}

	p = booked()
	p.ActorRole = "lawyer"
	p.Client.Name = ""
	_, body, _ = compose(EventCancelled, p)
	if !strings.Contains(body, "Hello there") || !strings.Contains(body, "cancelled by the lawyer") {
		t.Fatalf("unexpected body %q", body)
	}
}
