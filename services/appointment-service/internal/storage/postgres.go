package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lexconnect/lexconnect/libs/db"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/lifecycle"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/outbox"
)

// Postgres stores appointments in the appointments table. Slot locks are
// transaction-scoped advisory locks; the exclusion constraint on the table
// catches anything that bypasses them.
type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
	opts   Options
}

func NewPostgres(pool *db.Pool, outboxRepo *outbox.Repository, opts Options) *Postgres {
	return &Postgres{pool: pool, outbox: outboxRepo, opts: opts.withDefaults()}
}

const selectColumns = `
	SELECT id::text, client_id, client_name, client_email, COALESCE(lawyer_ref, ''),
		case_type, lawyer_type, appointment_date, appointment_time, duration_minutes,
		notes, status, created_at, updated_at
	FROM appointments`

func (s *Postgres) Get(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, s.pool, id, false)
}

func (s *Postgres) ListScheduledOn(ctx context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error) {
	return listScheduledOn(ctx, s.pool, lawyerRef, date)
}

func (s *Postgres) ListByLawyer(ctx context.Context, lawyerRef string, r model.DateRange) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, selectColumns+`
		WHERE lawyer_ref = $1
			AND ($2::date IS NULL OR appointment_date >= $2)
			AND ($3::date IS NULL OR appointment_date <= $3)
	`, lawyerRef, pgDateOrNull(r.From), pgDateOrNull(r.To))
	if err != nil {
		return nil, fmt.Errorf("list appointments by lawyer: %w", err)
	}
	return collectAppointments(rows)
}

func (s *Postgres) ListByClient(ctx context.Context, client model.ClientRef) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, selectColumns+`
		WHERE ($1::text <> '' AND client_id = $1::text)
			OR (($1::text = '' OR client_id = '') AND $2::text <> '' AND lower(client_email) = lower($2::text))
	`, client.ID, client.Email)
	if err != nil {
		return nil, fmt.Errorf("list appointments by client: %w", err)
	}
	return collectAppointments(rows)
}

func (s *Postgres) Create(ctx context.Context, d model.Draft, opts model.WriteOptions) (model.Appointment, error) {
	var created model.Appointment
	err := s.WithSlotLock(ctx, nil, func(tx Tx) error {
		var err error
		created, err = tx.Create(ctx, d, opts)
		return err
	})
	return created, err
}

func (s *Postgres) Update(ctx context.Context, id string, p model.Patch, opts model.WriteOptions) (model.Appointment, lifecycle.Change, error) {
	var (
		updated model.Appointment
		change  lifecycle.Change
	)
	err := s.WithSlotLock(ctx, nil, func(tx Tx) error {
		var err error
		updated, change, err = tx.Update(ctx, id, p, opts)
		return err
	})
	return updated, change, err
}

func (s *Postgres) Emit(ctx context.Context, evt outbox.Event) {
	if err := s.outbox.Insert(ctx, s.pool, evt); err != nil {
		s.opts.Logger.Error("outbox insert failed", "err", err, "event_type", evt.EventType, "aggregate_id", evt.AggregateID)
	}
}

func (s *Postgres) WithSlotLock(ctx context.Context, keys []model.SlotKey, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, k := range SortedKeys(keys) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k.String()); err != nil {
			return fmt.Errorf("lock %s: %w", k, err)
		}
	}

	if err := fn(&pgTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return s.translate(ctx, err, nil)
	}
	return nil
}

type pgTx struct {
	store *Postgres
	tx    pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.tx, id, false)
}

func (t *pgTx) ListScheduledOn(ctx context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error) {
	return listScheduledOn(ctx, t.tx, lawyerRef, date)
}

func (t *pgTx) Create(ctx context.Context, d model.Draft, opts model.WriteOptions) (model.Appointment, error) {
	at, stamp := t.store.opts.now()
	a, err := lifecycle.NewAppointment(t.store.opts.NewID(), d, at, stamp, opts)
	if err != nil {
		return model.Appointment{}, err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, client_id, client_name, client_email, lawyer_ref, case_type, lawyer_type,
			 appointment_date, appointment_time, duration_minutes, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID, a.Client.ID, a.Client.Name, a.Client.Email, pgTextOrNull(a.LawyerRef), a.CaseType, a.LawyerType,
		pgDate(a.Date), pgTime(a.Time), a.DurationMinutes, a.Notes, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, t.store.translate(ctx, err, &a)
	}
	return a, nil
}

func (t *pgTx) Update(ctx context.Context, id string, p model.Patch, opts model.WriteOptions) (model.Appointment, lifecycle.Change, error) {
	cur, err := getAppointment(ctx, t.tx, id, true)
	if err != nil {
		return model.Appointment{}, lifecycle.ChangeNone, err
	}
	at, stamp := t.store.opts.now()
	next, change, err := lifecycle.ApplyPatch(cur, p, at, stamp, opts)
	if err != nil || change == lifecycle.ChangeNone {
		return next, change, err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $2, appointment_time = $3, notes = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, id, pgDate(next.Date), pgTime(next.Time), next.Notes, string(next.Status), next.UpdatedAt)
	if err != nil {
		return model.Appointment{}, lifecycle.ChangeNone, t.store.translate(ctx, err, &next)
	}
	return next, change, nil
}

// Emit writes evt inside a savepoint so a failed insert leaves the appointment write intact.
func (t *pgTx) Emit(ctx context.Context, evt outbox.Event) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		t.store.opts.Logger.Error("outbox savepoint failed", "err", err, "event_type", evt.EventType)
		return
	}
	if err := t.store.outbox.Insert(ctx, sp, evt); err != nil {
		_ = sp.Rollback(ctx)
		t.store.opts.Logger.Error("outbox insert failed", "err", err, "event_type", evt.EventType, "aggregate_id", evt.AggregateID)
		return
	}
	if err := sp.Commit(ctx); err != nil {
		t.store.opts.Logger.Error("outbox savepoint release failed", "err", err, "event_type", evt.EventType)
	}
}

// translate maps an exclusion violation to a ConflictError, naming the blocking
// appointment when it can be found outside the failed transaction.
func (s *Postgres) translate(ctx context.Context, err error, a *model.Appointment) error {
	if !db.IsCode(err, db.CodeExclusionViolation) {
		return fmt.Errorf("write appointment: %w", err)
	}
	cerr := &model.ConflictError{}
	if a != nil && a.LawyerRef != "" {
		var id string
		start := a.Date.In(time.UTC).Add(a.Time.Duration())
		end := start.Add(time.Duration(a.DurationMinutes) * time.Minute)
		lookupErr := s.pool.QueryRow(ctx, `
			SELECT id::text FROM appointments
			WHERE lawyer_ref = $1 AND status = 'scheduled' AND id <> $2::uuid
				AND starts_at < $3 AND ends_at > $4
			ORDER BY appointment_time, id
			LIMIT 1
		`, a.LawyerRef, a.ID, end, start).Scan(&id)
		if lookupErr == nil {
			cerr.ConflictingID = id
		}
	}
	return cerr
}

func getAppointment(ctx context.Context, q db.Querier, id string, forUpdate bool) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, &model.NotFoundError{ID: id}
	}
	sql := selectColumns + ` WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAppointment)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, &model.NotFoundError{ID: id}
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func listScheduledOn(ctx context.Context, q db.Querier, lawyerRef string, date model.Date) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, selectColumns+`
		WHERE lawyer_ref = $1 AND appointment_date = $2 AND status = 'scheduled'
	`, lawyerRef, pgDate(date))
	if err != nil {
		return nil, fmt.Errorf("list scheduled appointments: %w", err)
	}
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	out, err := pgx.CollectRows(rows, scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("scan appointments: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.CollectableRow) (model.Appointment, error) {
	var (
		a      model.Appointment
		date   pgtype.Date
		tod    pgtype.Time
		status string
	)
	err := row.Scan(&a.ID, &a.Client.ID, &a.Client.Name, &a.Client.Email, &a.LawyerRef,
		&a.CaseType, &a.LawyerType, &date, &tod, &a.DurationMinutes,
		&a.Notes, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.DateOf(date.Time)
	a.Time = model.TimeOfDay(tod.Microseconds / int64(time.Minute/time.Microsecond))
	a.Status = model.Status(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func pgDate(d model.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func pgDateOrNull(d model.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgDate(d)
}

func pgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

func pgTextOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

var _ Store = (*Postgres)(nil)
