package storage

import (
	"context"
	"sync"

	"github.com/lexconnect/lexconnect/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is the delivery record kept for every handled appointment event.
type Notification struct {
	EventID       string
	AppointmentID string
	EventType     string
	Channel       string
	Recipient     string
	Subject       string
	Status        string
	ErrorReason   string
}

type Store interface {
	Insert(ctx context.Context, n Notification) error
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, appointment_id, event_type, channel, recipient, subject, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.EventID, n.AppointmentID, n.EventType, n.Channel, n.Recipient, n.Subject, n.Status, n.ErrorReason)
	return err
}

type Memory struct {
	mu    sync.Mutex
	items []Notification
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Insert(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

// List returns a copy of everything inserted so far.
func (m *Memory) List() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.items...)
}
