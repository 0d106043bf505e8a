package storage

import (
	"context"
	"sync"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/lifecycle"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/outbox"
)

// Memory keeps appointments in process. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	opts  Options
	locks keyedMutex

	mu     sync.RWMutex
	items  map[string]model.Appointment
	events []outbox.Event
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:  opts.withDefaults(),
		locks: keyedMutex{held: map[string]*lockEntry{}},
		items: map[string]model.Appointment{},
	}
}

func (m *Memory) Get(ctx context.Context, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return model.Appointment{}, &model.NotFoundError{ID: id}
	}
	return a, nil
}

func (m *Memory) ListScheduledOn(ctx context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error) {
	return m.filter(func(a model.Appointment) bool {
		return a.Status == model.StatusScheduled && a.LawyerRef == lawyerRef && a.Date == date
	}), nil
}

func (m *Memory) ListByLawyer(ctx context.Context, lawyerRef string, r model.DateRange) ([]model.Appointment, error) {
	return m.filter(func(a model.Appointment) bool {
		return a.LawyerRef == lawyerRef && r.Contains(a.Date)
	}), nil
}

func (m *Memory) ListByClient(ctx context.Context, client model.ClientRef) ([]model.Appointment, error) {
	return m.filter(func(a model.Appointment) bool { return a.Client.Matches(client) }), nil
}

func (m *Memory) filter(keep func(model.Appointment) bool) []model.Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (m *Memory) Create(ctx context.Context, d model.Draft, opts model.WriteOptions) (model.Appointment, error) {
	var created model.Appointment
	err := m.WithSlotLock(ctx, nil, func(tx Tx) error {
		var err error
		created, err = tx.Create(ctx, d, opts)
		return err
	})
	return created, err
}

func (m *Memory) Update(ctx context.Context, id string, p model.Patch, opts model.WriteOptions) (model.Appointment, lifecycle.Change, error) {
	var (
		updated model.Appointment
		change  lifecycle.Change
	)
	err := m.WithSlotLock(ctx, nil, func(tx Tx) error {
		var err error
		updated, change, err = tx.Update(ctx, id, p, opts)
		return err
	})
	return updated, change, err
}

func (m *Memory) Emit(ctx context.Context, evt outbox.Event) {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
}

// Events returns a copy of every emitted event in emission order.
func (m *Memory) Events() []outbox.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]outbox.Event(nil), m.events...)
}

func (m *Memory) WithSlotLock(ctx context.Context, keys []model.SlotKey, fn func(tx Tx) error) error {
	sorted := SortedKeys(keys)
	for i, k := range sorted {
		if err := m.locks.Lock(ctx, k.String()); err != nil {
			for _, held := range sorted[:i] {
				m.locks.Unlock(held.String())
			}
			return err
		}
	}
	defer func() {
		for _, k := range sorted {
			m.locks.Unlock(k.String())
		}
	}()

	tx := &memoryTx{store: m, staged: map[string]model.Appointment{}}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range tx.staged {
		m.items[id] = a
	}
	m.events = append(m.events, tx.events...)
	return nil
}

// memoryTx stages writes and applies them on commit.
type memoryTx struct {
	store  *Memory
	staged map[string]model.Appointment
	events []outbox.Event
}

func (t *memoryTx) Get(ctx context.Context, id string) (model.Appointment, error) {
	if a, ok := t.staged[id]; ok {
		return a, nil
	}
	return t.store.Get(ctx, id)
}

func (t *memoryTx) ListScheduledOn(ctx context.Context, lawyerRef string, date model.Date) ([]model.Appointment, error) {
	committed, err := t.store.ListScheduledOn(ctx, lawyerRef, date)
	if err != nil {
		return nil, err
	}
	out := committed[:0:0]
	for _, a := range committed {
		if _, overridden := t.staged[a.ID]; !overridden {
			out = append(out, a)
		}
	}
	for _, a := range t.staged {
		if a.Status == model.StatusScheduled && a.LawyerRef == lawyerRef && a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memoryTx) Create(ctx context.Context, d model.Draft, opts model.WriteOptions) (model.Appointment, error) {
	at, stamp := t.store.opts.now()
	a, err := lifecycle.NewAppointment(t.store.opts.NewID(), d, at, stamp, opts)
	if err != nil {
		return model.Appointment{}, err
	}
	t.staged[a.ID] = a
	return a, nil
}

func (t *memoryTx) Update(ctx context.Context, id string, p model.Patch, opts model.WriteOptions) (model.Appointment, lifecycle.Change, error) {
	cur, err := t.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, lifecycle.ChangeNone, err
	}
	at, stamp := t.store.opts.now()
	next, change, err := lifecycle.ApplyPatch(cur, p, at, stamp, opts)
	if err != nil {
		return model.Appointment{}, lifecycle.ChangeNone, err
	}
	if change != lifecycle.ChangeNone {
		t.staged[id] = next
	}
	return next, change, nil
}

func (t *memoryTx) Emit(ctx context.Context, evt outbox.Event) {
	t.events = append(t.events, evt)
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits on it.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func (k *keyedMutex) Lock(ctx context.Context, key string) error {
	k.mu.Lock()
	e, ok := k.held[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.held[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.release(key, e)
		return ctx.Err()
	}
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	e := k.held[key]
	k.mu.Unlock()
	if e == nil {
		return
	}
	<-e.ch
	k.release(key, e)
}

func (k *keyedMutex) release(key string, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.held, key)
	}
}

var _ Store = (*Memory)(nil)
