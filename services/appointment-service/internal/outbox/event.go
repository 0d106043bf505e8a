package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

// Topic names; the Kafka topic equals the event type.
const (
	EventBooked      = "appointment.booked.v1"
	EventRescheduled = "appointment.rescheduled.v1"
	EventCompleted   = "appointment.completed.v1"
	EventCancelled   = "appointment.cancelled.v1"
	EventUpdated     = "appointment.updated.v1"
)

// Event is the envelope written to the outbox table.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentPayload is the JSON body of every appointment event.
type AppointmentPayload struct {
	AppointmentID   string          `json:"appointment_id"`
	LawyerRef       string          `json:"lawyer_ref,omitempty"`
	Client          model.ClientRef `json:"client"`
	CaseType        string          `json:"case_type"`
	LawyerType      string          `json:"lawyer_type"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	DurationMinutes int             `json:"duration_minutes"`
	Status          string          `json:"status"`
	PreviousDate    string          `json:"previous_date,omitempty"`
	PreviousTime    string          `json:"previous_time,omitempty"`
	ActorID         string          `json:"actor_id,omitempty"`
	ActorRole       string          `json:"actor_role,omitempty"`
	OccurredAt      string          `json:"occurred_at"`
}

// Actor is who caused an event.
type Actor struct {
	ID   string
	Role string
}

// NewAppointmentEvent builds an event for a; prev is the record before the change
// and may be nil for bookings.
func NewAppointmentEvent(eventType string, a model.Appointment, prev *model.Appointment, actor Actor) (Event, error) {
	p := AppointmentPayload{
		AppointmentID:   a.ID,
		LawyerRef:       a.LawyerRef,
		Client:          a.Client,
		CaseType:        a.CaseType,
		LawyerType:      a.LawyerType,
		Date:            a.Date.String(),
		Time:            a.Time.String(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		OccurredAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if prev != nil && (prev.Date != a.Date || prev.Time != a.Time) {
		p.PreviousDate = prev.Date.String()
		p.PreviousTime = prev.Time.String()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
