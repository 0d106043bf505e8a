// Package booking orchestrates appointment writes: authorization, lawyer
// validation, the conflict check and the store write all happen here, with
// the check and the write sharing one slot lock.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lexconnect/lexconnect/libs/httpx"
	otelx "github.com/lexconnect/lexconnect/libs/otel"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/conflict"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/directory"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/identity"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/lifecycle"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/outbox"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errSlotMoved means the appointment was rescheduled between the unlocked read
// and taking the slot locks.
var errSlotMoved = errors.New("appointment moved while acquiring slot locks")

const lockAttempts = 3

var tracer = otelx.Tracer("appointment-service/booking")

type Config struct {
	Clock    model.Clock
	Location *time.Location
}

type Service struct {
	store   storage.Store
	checker *conflict.Checker
	lawyers directory.Provider
	logger  *slog.Logger
	clock   model.Clock
	loc     *time.Location
}

func NewService(store storage.Store, checker *conflict.Checker, lawyers directory.Provider, logger *slog.Logger, cfg Config) *Service {
	if checker == nil {
		checker = conflict.NewChecker(nil)
	}
	if lawyers == nil {
		lawyers = directory.NewStaticProvider()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, checker: checker, lawyers: lawyers, logger: logger, clock: cfg.Clock, loc: cfg.Location}
}

// Now is the current practice-local minute.
func (s *Service) Now() model.Moment {
	return model.MomentOf(s.clock(), s.loc)
}

// Book creates a scheduled appointment for d on behalf of caller.
func (s *Service) Book(ctx context.Context, caller identity.Caller, d model.Draft) (_ model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("appointment.lawyer_ref", d.LawyerRef),
		attribute.String("caller.role", string(caller.Role)),
	))
	defer func() { endSpan(span, err) }()

	if !lifecycle.Allowed(caller.Role, lifecycle.ActionBook) {
		return model.Appointment{}, &model.AuthorizationError{Reason: "role may not book appointments"}
	}
	d, err = s.bookFor(caller, d)
	if err != nil {
		return model.Appointment{}, err
	}
	opts := writeOptions(caller)

	// Validate up front so a malformed or past request is reported as such
	// rather than as a conflict.
	probe, err := lifecycle.NewAppointment("", d, s.Now(), s.clock(), opts)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.checkLawyer(ctx, probe.LawyerRef); err != nil {
		return model.Appointment{}, err
	}

	var created model.Appointment
	err = s.store.WithSlotLock(ctx, []model.SlotKey{probe.Slot()}, func(tx storage.Tx) error {
		res, err := s.checker.Check(ctx, tx, conflict.Query{
			LawyerRef:       probe.LawyerRef,
			Date:            probe.Date,
			Time:            probe.Time,
			DurationMinutes: probe.DurationMinutes,
		})
		if err != nil {
			return err
		}
		if err := res.Err(); err != nil {
			return err
		}
		created, err = tx.Create(ctx, d, opts)
		if err != nil {
			return err
		}
		s.emit(ctx, tx, outbox.EventBooked, created, nil, caller)
		return nil
	})
	if err != nil {
		s.logOutcome(ctx, "appointment booking rejected", caller, probe, err)
		return model.Appointment{}, err
	}
	s.logOutcome(ctx, "appointment booked", caller, created, nil)
	return created, nil
}

// bookFor pins the draft to the caller: clients book for themselves and
// lawyers only onto their own calendar.
func (s *Service) bookFor(caller identity.Caller, d model.Draft) (model.Draft, error) {
	switch caller.Role {
	case model.RoleClient:
		if caller.Email != "" && d.Client.Email != "" && !strings.EqualFold(strings.TrimSpace(d.Client.Email), caller.Email) {
			return d, &model.AuthorizationError{Reason: "clients may only book for themselves"}
		}
		d.Client.ID = caller.ID
		if strings.TrimSpace(d.Client.Name) == "" {
			d.Client.Name = caller.Name
		}
		if strings.TrimSpace(d.Client.Email) == "" {
			d.Client.Email = caller.Email
		}
	case model.RoleLawyer:
		ref := strings.TrimSpace(d.LawyerRef)
		if ref == "" {
			d.LawyerRef = caller.ID
		} else if ref != caller.ID {
			return d, &model.AuthorizationError{Reason: "lawyers may only book onto their own calendar"}
		}
	}
	return d, nil
}

func (s *Service) checkLawyer(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	l, err := s.lawyers.Lookup(ctx, ref)
	switch {
	case errors.Is(err, directory.ErrLawyerNotFound):
		return model.Invalid("lawyer_ref", "unknown lawyer")
	case err != nil:
		return fmt.Errorf("lookup lawyer %s: %w", ref, err)
	case !l.Active:
		return model.Invalid("lawyer_ref", "lawyer is not accepting appointments")
	}
	return nil
}

// Get returns appointment id if caller may view it.
func (s *Service) Get(ctx context.Context, caller identity.Caller, id string) (model.Appointment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !lifecycle.Allowed(caller.Role, lifecycle.ActionView) || !owns(caller, a) {
		return model.Appointment{}, &model.AuthorizationError{Reason: "appointment belongs to someone else"}
	}
	return a, nil
}

// Change applies p to appointment id. Reschedules hold the locks of both the
// old and the new lawyer-day and are conflict checked against the new one.
func (s *Service) Change(ctx context.Context, caller identity.Caller, id string, p model.Patch) (_ model.Appointment, _ lifecycle.Change, err error) {
	ctx, span := tracer.Start(ctx, "booking.Change", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("caller.role", string(caller.Role)),
	))
	defer func() { endSpan(span, err) }()

	if p.Empty() {
		return model.Appointment{}, lifecycle.ChangeNone, model.Invalid("patch", "at least one of status, date, time or notes is required")
	}
	for attempt := 0; ; attempt++ {
		a, change, err := s.change(ctx, caller, id, p)
		if errors.Is(err, errSlotMoved) && attempt+1 < lockAttempts {
			continue
		}
		return a, change, err
	}
}

func (s *Service) change(ctx context.Context, caller identity.Caller, id string, p model.Patch) (model.Appointment, lifecycle.Change, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, lifecycle.ChangeNone, err
	}
	if err := authorize(caller, cur, p); err != nil {
		return model.Appointment{}, lifecycle.ChangeNone, err
	}
	opts := writeOptions(caller)

	keys := []model.SlotKey{cur.Slot()}
	if p.Date != nil {
		if d, err := model.ParseDate(*p.Date); err == nil {
			keys = append(keys, model.SlotKey{LawyerRef: cur.LawyerRef, Date: d})
		}
	}

	var (
		updated model.Appointment
		change  lifecycle.Change
	)
	err = s.store.WithSlotLock(ctx, keys, func(tx storage.Tx) error {
		fresh, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if fresh.Slot() != cur.Slot() {
			return errSlotMoved
		}
		next, planned, err := lifecycle.ApplyPatch(fresh, p, s.Now(), s.clock(), opts)
		if err != nil {
			return err
		}
		if planned == lifecycle.ChangeRescheduled {
			res, err := s.checker.Check(ctx, tx, conflict.Query{
				LawyerRef:       next.LawyerRef,
				Date:            next.Date,
				Time:            next.Time,
				DurationMinutes: next.DurationMinutes,
				ExcludeID:       id,
			})
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return err
			}
		}
		updated, change, err = tx.Update(ctx, id, p, opts)
		if err != nil {
			return err
		}
		if evt := eventFor(change); evt != "" {
			s.emit(ctx, tx, evt, updated, &fresh, caller)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errSlotMoved) {
			s.logOutcome(ctx, "appointment change rejected", caller, cur, err)
		}
		return model.Appointment{}, lifecycle.ChangeNone, err
	}
	msg := "appointment " + string(change)
	if change == lifecycle.ChangeNone {
		msg = "appointment unchanged"
	}
	s.logOutcome(ctx, msg, caller, updated, nil)
	return updated, change, nil
}

// FreeSlots lists open start times on a lawyer's calendar. Past starts are
// hidden unless the caller is an administrator.
func (s *Service) FreeSlots(ctx context.Context, caller identity.Caller, q conflict.SlotQuery) ([]model.TimeOfDay, error) {
	if err := s.checkLawyer(ctx, q.LawyerRef); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		q.NotBefore = s.Now()
	}
	return s.checker.FreeSlots(ctx, s.store, q)
}

func authorize(caller identity.Caller, cur model.Appointment, p model.Patch) error {
	if !owns(caller, cur) {
		return &model.AuthorizationError{Reason: "appointment belongs to someone else"}
	}
	for _, action := range lifecycle.ActionsFor(cur, p) {
		if !lifecycle.Allowed(caller.Role, action) {
			return &model.AuthorizationError{Reason: fmt.Sprintf("%s may not %s appointments", caller.Role, action)}
		}
	}
	return nil
}

// owns reports whether caller is a party to a.
func owns(caller identity.Caller, a model.Appointment) bool {
	switch caller.Role {
	case model.RoleAdmin:
		return true
	case model.RoleLawyer:
		return a.LawyerRef != "" && a.LawyerRef == caller.ID
	case model.RoleClient:
		return a.Client.Matches(caller.ClientRef())
	}
	return false
}

func writeOptions(caller identity.Caller) model.WriteOptions {
	return model.WriteOptions{AllowPast: caller.IsAdmin()}
}

func eventFor(c lifecycle.Change) string {
	switch c {
	case lifecycle.ChangeRescheduled:
		return outbox.EventRescheduled
	case lifecycle.ChangeCompleted:
		return outbox.EventCompleted
	case lifecycle.ChangeCancelled:
		return outbox.EventCancelled
	case lifecycle.ChangeUpdated:
		return outbox.EventUpdated
	}
	return ""
}

func (s *Service) emit(ctx context.Context, tx storage.Tx, eventType string, a model.Appointment, prev *model.Appointment, caller identity.Caller) {
	evt, err := outbox.NewAppointmentEvent(eventType, a, prev, outbox.Actor{ID: caller.ID, Role: string(caller.Role)})
	if err != nil {
		s.logger.Error("build appointment event failed", "err", err, "event_type", eventType, "appointment_id", a.ID)
		return
	}
	tx.Emit(ctx, evt)
}

func (s *Service) logOutcome(ctx context.Context, msg string, caller identity.Caller, a model.Appointment, err error) {
	attrs := []any{
		"request_id", httpx.RequestIDFromContext(ctx),
		"user_id", caller.ID,
		"role", string(caller.Role),
		"lawyer_ref", a.LawyerRef,
		"date", a.Date.String(),
		"time", a.Time.String(),
	}
	if a.ID != "" {
		attrs = append(attrs, "appointment_id", a.ID)
	}
	if err != nil {
		level := slog.LevelInfo
		if !isDomainError(err) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, msg, append(attrs, "err", err)...)
		return
	}
	s.logger.Info(msg, attrs...)
}

func isDomainError(err error) bool {
	var (
		verr *model.ValidationError
		perr *model.PastDateError
		cerr *model.ConflictError
		terr *model.InvalidTransitionError
		nerr *model.NotFoundError
		aerr *model.AuthorizationError
	)
	return errors.As(err, &verr) || errors.As(err, &perr) || errors.As(err, &cerr) ||
		errors.As(err, &terr) || errors.As(err, &nerr) || errors.As(err, &aerr)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !isDomainError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
