package notify

import (
	"fmt"
	"strings"
)

// Appointment event types consumed by this service. Each is also a Kafka topic.
const (
	EventBooked      = "appointment.booked.v1"
	EventRescheduled = "appointment.rescheduled.v1"
	EventCompleted   = "appointment.completed.v1"
	EventCancelled   = "appointment.cancelled.v1"
	EventUpdated     = "appointment.updated.v1"
)

// Topics lists every appointment event type.
var Topics = []string{EventBooked, EventRescheduled, EventCompleted, EventCancelled, EventUpdated}

type client struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type appointmentPayload struct {
	AppointmentID   string `json:"appointment_id"`
	LawyerRef       string `json:"lawyer_ref,omitempty"`
	Client          client `json:"client"`
	CaseType        string `json:"case_type"`
	LawyerType      string `json:"lawyer_type"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	PreviousDate    string `json:"previous_date,omitempty"`
	PreviousTime    string `json:"previous_time,omitempty"`
	ActorRole       string `json:"actor_role,omitempty"`
}

// compose renders the client email for an event. ok is false for events that
// do not notify the client, such as notes edits.
func compose(eventType string, p appointmentPayload) (subject, body string, ok bool) {
	when := p.Date + " at " + p.Time
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(p.Client.Name))

	switch eventType {
	case EventBooked:
		subject = "Consultation booked for " + when
		fmt.Fprintf(&b, "Your %s consultation is booked for %s (%d minutes).\n", topic(p), when, p.DurationMinutes)
	case EventRescheduled:
		subject = "Consultation moved to " + when
		fmt.Fprintf(&b, "Your %s consultation has been moved", topic(p))
		if p.PreviousDate != "" {
			fmt.Fprintf(&b, " from %s at %s", p.PreviousDate, p.PreviousTime)
		}
		fmt.Fprintf(&b, " to %s (%d minutes).\n", when, p.DurationMinutes)
	case EventCancelled:
		subject = "Consultation on " + when + " cancelled"
		fmt.Fprintf(&b, "Your %s consultation on %s has been cancelled", topic(p), when)
		if p.ActorRole != "" && p.ActorRole != "client" {
			fmt.Fprintf(&b, " by the %s", p.ActorRole)
		}
		b.WriteString(".\nYou can book a new time whenever it suits you.\n")
	case EventCompleted:
		subject = "Thank you for your consultation on " + p.Date
		fmt.Fprintf(&b, "Your %s consultation on %s is marked as completed.\n", topic(p), when)
	default:
		return "", "", false
	}

	fmt.Fprintf(&b, "\nReference: %s\n", p.AppointmentID)
	return subject, b.String(), true
}

func greetingName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "there"
}

func topic(p appointmentPayload) string {
	if p.CaseType == "" {
		return "legal"
	}
	return p.CaseType
}
