// Package storage keeps the lawyer directory records.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lexconnect/lexconnect/libs/db"
)

var ErrNotFound = errors.New("lawyer not found")

type Lawyer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Store interface {
	Get(ctx context.Context, id string) (Lawyer, error)
	Upsert(ctx context.Context, l Lawyer) (Lawyer, error)
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id string) (Lawyer, error) {
	var l Lawyer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, specialization, active, updated_at
		FROM lawyers
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Email, &l.Specialization, &l.Active, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lawyer{}, ErrNotFound
	}
	return l, err
}

func (r *Repository) Upsert(ctx context.Context, l Lawyer) (Lawyer, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lawyers (id, name, email, specialization, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			email = EXCLUDED.email,
			specialization = EXCLUDED.specialization,
			active = EXCLUDED.active,
			updated_at = now()
		RETURNING updated_at
	`, l.ID, l.Name, l.Email, l.Specialization, l.Active).Scan(&l.UpdatedAt)
	return l, err
}

// Memory backs tests and DIRECTORY_STORE=memory runs.
type Memory struct {
	mu      sync.RWMutex
	lawyers map[string]Lawyer
	now     func() time.Time
}

func NewMemory(seed ...Lawyer) *Memory {
	m := &Memory{lawyers: map[string]Lawyer{}, now: time.Now}
	for _, l := range seed {
		l.UpdatedAt = m.now().UTC()
		m.lawyers[l.ID] = l
	}
	return m
}

func (m *Memory) Get(_ context.Context, id string) (Lawyer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lawyers[id]
	if !ok {
		return Lawyer{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) Upsert(_ context.Context, l Lawyer) (Lawyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.UpdatedAt = m.now().UTC()
	m.lawyers[l.ID] = l
	return l, nil
}

// ParseSeed reads "id:Name:specialization" entries separated by commas.
func ParseSeed(raw string) []Lawyer {
	var out []Lawyer
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if strings.TrimSpace(parts[0]) == "" {
			continue
		}
		l := Lawyer{ID: strings.TrimSpace(parts[0]), Active: true}
		if len(parts) > 1 {
			l.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			l.Specialization = strings.TrimSpace(parts[2])
		}
		out = append(out, l)
	}
	return out
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*Memory)(nil)
)
