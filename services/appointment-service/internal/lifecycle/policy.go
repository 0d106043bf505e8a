package lifecycle

import "github.com/lexconnect/lexconnect/services/appointment-service/internal/model"

type Action string

const (
	ActionBook       Action = "book"
	ActionView       Action = "view"
	ActionReschedule Action = "reschedule"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionEditNotes  Action = "edit_notes"
)

var permissions = map[model.Role]map[Action]bool{
	model.RoleClient: {
		ActionBook:       true,
		ActionView:       true,
		ActionReschedule: true,
		ActionCancel:     true,
		ActionEditNotes:  true,
	},
	model.RoleLawyer: {
		ActionBook:      true,
		ActionView:      true,
		ActionComplete:  true,
		ActionCancel:    true,
		ActionEditNotes: true,
	},
}

// Allowed reports whether role may perform action at all. Ownership of the
// specific appointment is checked separately by the booking service.
func Allowed(role model.Role, action Action) bool {
	if role == model.RoleAdmin {
		return true
	}
	return permissions[role][action]
}

// ActionsFor lists the actions a patch performs against cur.
func ActionsFor(cur model.Appointment, p model.Patch) []Action {
	var actions []Action
	if p.Status != nil {
		if s, err := model.ParseStatus(*p.Status); err == nil && s != cur.Status {
			switch s {
			case model.StatusCompleted:
				actions = append(actions, ActionComplete)
			case model.StatusCancelled:
				actions = append(actions, ActionCancel)
			}
		}
	}
	if p.Date != nil || p.Time != nil {
		actions = append(actions, ActionReschedule)
	}
	if p.Notes != nil {
		actions = append(actions, ActionEditNotes)
	}
	return actions
}
