package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/lexconnect/lexconnect/libs/httpx"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/booking"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/conflict"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/directory"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/identity"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/query"
)

const (
	defaultWorkdayStart = "09:00"
	defaultWorkdayEnd   = "17:00"
	defaultSlotStep     = 30
)

type AppointmentHandler struct {
	booking *booking.Service
	queries *query.Service
	lawyers directory.Provider
	logger  *slog.Logger
}

func NewAppointmentHandler(bookingSvc *booking.Service, queries *query.Service, lawyers directory.Provider, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		booking: bookingSvc,
		queries: queries,
		lawyers: lawyers,
		logger:  logger,
	}
}

// Register mounts the appointment routes under /api/v1/appointments.
func (h *AppointmentHandler) Register(r *mux.Router) {
	const base = "/api/v1/appointments"
	r.HandleFunc(base, h.Create).Methods(http.MethodPost)
	r.HandleFunc(base, h.List).Methods(http.MethodGet)
	r.HandleFunc(base+"/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc(base+"/availability", h.Availability).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id}", h.Patch).Methods(http.MethodPatch)
}

type createAppointmentRequest struct {
	Client          model.ClientRef `json:"client"`
	LawyerRef       string          `json:"lawyer_ref"`
	CaseType        string          `json:"case_type"`
	LawyerType      string          `json:"lawyer_type"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	DurationMinutes int             `json:"duration_minutes"`
	Notes           string          `json:"notes"`
}

type patchAppointmentRequest struct {
	Status *string `json:"status"`
	Date   *string `json:"date"`
	Time   *string `json:"time"`
	Notes  *string `json:"notes"`
}

type appointmentResponse struct {
	ID                   string          `json:"id"`
	Client               model.ClientRef `json:"client"`
	LawyerRef            string          `json:"lawyer_ref,omitempty"`
	LawyerName           string          `json:"lawyer_name,omitempty"`
	LawyerSpecialization string          `json:"lawyer_specialization,omitempty"`
	CaseType             string          `json:"case_type"`
	LawyerType           string          `json:"lawyer_type"`
	Date                 string          `json:"date"`
	Time                 string          `json:"time"`
	DurationMinutes      int             `json:"duration_minutes"`
	Notes                string          `json:"notes,omitempty"`
	Status               string          `json:"status"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
}

type listResponse struct {
	AsOf  string                `json:"as_of"`
	Tab   string                `json:"tab"`
	Items []appointmentResponse `json:"items"`
}

type summaryResponse struct {
	AsOf string `json:"as_of"`
	query.Summary
}

type availabilityResponse struct {
	LawyerRef       string   `json:"lawyer_ref,omitempty"`
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := h.booking.Book(r.Context(), caller, model.Draft{
		Client:          req.Client,
		LawyerRef:       req.LawyerRef,
		CaseType:        req.CaseType,
		LawyerType:      req.LawyerType,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/appointments/"+a.ID)
	httpx.WriteJSON(w, http.StatusCreated, h.render(r.Context(), a, nil))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	a, err := h.booking.Get(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.render(r.Context(), a, nil))
}

func (h *AppointmentHandler) Patch(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req patchAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	a, _, err := h.booking.Change(r.Context(), caller, mux.Vars(r)["id"], model.Patch{
		Status: req.Status,
		Date:   req.Date,
		Time:   req.Time,
		Notes:  req.Notes,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.render(r.Context(), a, nil))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	subj, err := subjectFor(caller, r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	tab, err := query.ParseTab(r.URL.Query().Get("tab"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	list, err := h.queries.Filter(r.Context(), subj, asOf, tab)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	resp := listResponse{AsOf: asOf.String(), Tab: tabName(tab), Items: make([]appointmentResponse, 0, len(list))}
	seen := map[string]directory.Lawyer{}
	for _, a := range list {
		resp.Items = append(resp.Items, h.render(r.Context(), a, seen))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AppointmentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	subj, err := subjectFor(caller, r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	sum, err := h.queries.Summarize(r.Context(), subj, asOf)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summaryResponse{AsOf: asOf.String(), Summary: sum})
}

func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	q, err := slotQueryFrom(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	slots, err := h.booking.FreeSlots(r.Context(), caller, q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	resp := availabilityResponse{
		LawyerRef:       q.LawyerRef,
		Date:            q.Date.String(),
		DurationMinutes: q.DurationMinutes,
		Slots:           make([]string, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, s.String())
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func slotQueryFrom(r *http.Request) (conflict.SlotQuery, error) {
	v := r.URL.Query()
	date, err := model.ParseDate(v.Get("date"))
	if err != nil {
		return conflict.SlotQuery{}, model.Invalid("date", "must be YYYY-MM-DD")
	}
	start, err := model.ParseTimeOfDay(valueOr(v.Get("workday_start"), defaultWorkdayStart))
	if err != nil {
		return conflict.SlotQuery{}, model.Invalid("workday_start", err.Error())
	}
	end, err := model.ParseTimeOfDay(valueOr(v.Get("workday_end"), defaultWorkdayEnd))
	if err != nil {
		return conflict.SlotQuery{}, model.Invalid("workday_end", err.Error())
	}
	if end <= start {
		return conflict.SlotQuery{}, model.Invalid("workday_end", "must be after workday_start")
	}
	duration, err := positiveInt(v.Get("duration_minutes"), model.DefaultDurationMinutes)
	if err != nil || duration > model.MaxDurationMinutes {
		return conflict.SlotQuery{}, model.Invalid("duration_minutes", "must be between 1 and 1440")
	}
	step, err := positiveInt(v.Get("step_minutes"), defaultSlotStep)
	if err != nil {
		return conflict.SlotQuery{}, model.Invalid("step_minutes", "must be a positive integer")
	}
	return conflict.SlotQuery{
		LawyerRef:       strings.TrimSpace(v.Get("lawyer_ref")),
		Date:            date,
		Window:          conflict.Interval{Start: start, End: end},
		DurationMinutes: duration,
		StepMinutes:     step,
	}, nil
}

// subjectFor resolves scope=mine|lawyer into whose calendar is read.
func subjectFor(caller identity.Caller, r *http.Request) (query.Subject, error) {
	scope := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("scope")))
	lawyerRef := strings.TrimSpace(r.URL.Query().Get("lawyer_ref"))
	switch scope {
	case "", "mine":
		switch caller.Role {
		case model.RoleClient:
			return query.ClientSubject(caller.ClientRef()), nil
		case model.RoleLawyer:
			return query.LawyerSubject(caller.ID), nil
		}
		if lawyerRef == "" {
			return query.Subject{}, model.Invalid("scope", "administrators must use scope=lawyer with lawyer_ref")
		}
		return query.LawyerSubject(lawyerRef), nil
	case "lawyer":
		switch caller.Role {
		case model.RoleAdmin:
			if lawyerRef == "" {
				return query.Subject{}, model.Invalid("lawyer_ref", "is required")
			}
			return query.LawyerSubject(lawyerRef), nil
		case model.RoleLawyer:
			if lawyerRef != "" && lawyerRef != caller.ID {
				return query.Subject{}, &model.AuthorizationError{Reason: "lawyers may only read their own calendar"}
			}
			return query.LawyerSubject(caller.ID), nil
		}
		return query.Subject{}, &model.AuthorizationError{Reason: "clients may only read their own appointments"}
	}
	return query.Subject{}, model.Invalid("scope", "must be mine or lawyer")
}

// asOf is the request's single notion of "now": the as_of override when given,
// else the practice clock.
func (h *AppointmentHandler) asOf(r *http.Request) (model.Moment, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return h.booking.Now(), nil
	}
	m, err := model.ParseMoment(raw)
	if err != nil {
		return model.Moment{}, model.Invalid("as_of", "must be YYYY-MM-DDTHH:MM")
	}
	return m, nil
}

func (h *AppointmentHandler) caller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	c, err := identity.FromRequest(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "caller identity headers are missing or invalid")
		return identity.Caller{}, false
	}
	return c, true
}

// render converts a to its wire form. Lawyer details are best effort; seen
// memoises lookups across one listing.
func (h *AppointmentHandler) render(ctx context.Context, a model.Appointment, seen map[string]directory.Lawyer) appointmentResponse {
	resp := appointmentResponse{
		ID:              a.ID,
		Client:          a.Client,
		LawyerRef:       a.LawyerRef,
		CaseType:        a.CaseType,
		LawyerType:      a.LawyerType,
		Date:            a.Date.String(),
		Time:            a.Time.String(),
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.LawyerRef == "" || h.lawyers == nil {
		return resp
	}
	l, ok := seen[a.LawyerRef]
	if !ok {
		var err error
		l, err = h.lawyers.Lookup(ctx, a.LawyerRef)
		if err != nil {
			h.logger.Debug("lawyer enrichment skipped", "lawyer_ref", a.LawyerRef, "err", err)
		}
		if seen != nil {
			seen[a.LawyerRef] = l
		}
	}
	resp.LawyerName = l.Name
	resp.LawyerSpecialization = l.Specialization
	return resp
}

func (h *AppointmentHandler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *model.ValidationError
		perr *model.PastDateError
		cerr *model.ConflictError
		terr *model.InvalidTransitionError
		nerr *model.NotFoundError
		aerr *model.AuthorizationError
	)
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_error", verr.Error())
	case errors.As(err, &perr):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "past_date", perr.Error())
	case errors.As(err, &cerr):
		httpx.WriteJSON(w, http.StatusConflict, httpx.ErrorBody{Error: "conflict", Message: cerr.Error(), ConflictingID: cerr.ConflictingID})
	case errors.As(err, &terr):
		httpx.WriteError(w, http.StatusConflict, "invalid_transition", terr.Error())
	case errors.As(err, &nerr):
		httpx.WriteError(w, http.StatusNotFound, "not_found", nerr.Error())
	case errors.As(err, &aerr):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", aerr.Error())
	case errors.Is(err, directory.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("dependency unavailable", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "a dependency is unavailable, try again shortly")
	default:
		h.logger.Error("request failed", "request_id", httpx.RequestIDFromContext(r.Context()), "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func tabName(t query.Tab) string {
	if t.Kind == query.TabDate {
		return "date:" + t.Date.String()
	}
	return string(t.Kind)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func positiveInt(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
