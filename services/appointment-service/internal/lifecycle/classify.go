package lifecycle

import "github.com/lexconnect/lexconnect/services/appointment-service/internal/model"

// Category is the dashboard bucket an appointment falls into at a given moment.
type Category string

const (
	CategoryToday     Category = "today"
	CategoryUpcoming  Category = "upcoming"
	CategoryPastDue   Category = "past_due_uncompleted"
	CategoryCompleted Category = "completed"
	CategoryCancelled Category = "cancelled"
)

// Classify is pure: the same record and asOf always give the same category.
// Terminal statuses win; a scheduled appointment dated today is "today" even
// after its start time has passed.
func Classify(a model.Appointment, asOf model.Moment) Category {
	switch a.Status {
	case model.StatusCancelled:
		return CategoryCancelled
	case model.StatusCompleted:
		return CategoryCompleted
	}
	if a.Date == asOf.Date {
		return CategoryToday
	}
	if a.Start().After(asOf) {
		return CategoryUpcoming
	}
	return CategoryPastDue
}
