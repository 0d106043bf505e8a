// Package storage persists appointments. Every implementation routes writes
// through the lifecycle package so validation and status rules are shared.
package storage

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/lifecycle"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/outbox"
)

// Tx is the unit of work handed to WithSlotLock callbacks. Writes made through
// it become visible together when the callback returns nil.
type Tx interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	ListScheduledOn(ctx context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error)
	Create(ctx context.Context, d model.Draft, opts model.WriteOptions) (model.Appointment, error)
	Update(ctx context.Context, id string, p model.Patch, opts model.WriteOptions) (model.Appointment, lifecycle.Change, error)
	// Emit queues evt for publication with the surrounding writes. Failures are
	// logged and never fail the unit of work.
	Emit(ctx context.Context, evt outbox.Event)
}

type Store interface {
	Tx
	// ListByLawyer and ListByClient return records in no particular order.
	ListByLawyer(ctx context.Context, lawyerRef string, r model.DateRange) ([]model.Appointment, error)
	ListByClient(ctx context.Context, client model.ClientRef) ([]model.Appointment, error)
	// WithSlotLock runs fn while holding exclusive locks on every key.
	WithSlotLock(ctx context.Context, keys []model.SlotKey, fn func(tx Tx) error) error
}

type Options struct {
	Clock    model.Clock
	Location *time.Location
	Logger   *slog.Logger
	NewID    func() string
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// now returns the practice-local minute and the UTC stamp for one write.
func (o Options) now() (model.Moment, time.Time) {
	t := o.Clock()
	return model.MomentOf(t, o.Location), t.UTC()
}

// SortedKeys drops keys without a lawyer, removes duplicates and orders the
// rest so every caller acquires locks in the same order.
func SortedKeys(keys []model.SlotKey) []model.SlotKey {
	seen := make(map[model.SlotKey]struct{}, len(keys))
	out := make([]model.SlotKey, 0, len(keys))
	for _, k := range keys {
		if k.LawyerRef == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
