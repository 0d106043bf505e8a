// Package directory resolves lawyer references against the lawyer directory.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lexconnect/lexconnect/libs/directoryv1"
	"github.com/lexconnect/lexconnect/libs/grpcx"
)

var (
	ErrLawyerNotFound = errors.New("lawyer not found")
	ErrUnavailable    = errors.New("lawyer directory unavailable")
)

type Lawyer struct {
	ID             string
	Name           string
	Specialization string
	Active         bool
}

type Provider interface {
	Lookup(ctx context.Context, lawyerID string) (Lawyer, error)
}

// staticProvider accepts every id unless seeded, in which case only seeded ids exist.
type staticProvider struct {
	lawyers map[string]Lawyer
}

func NewStaticProvider(seed ...Lawyer) Provider {
	p := &staticProvider{lawyers: map[string]Lawyer{}}
	for _, l := range seed {
		p.lawyers[l.ID] = l
	}
	return p
}

func (p *staticProvider) Lookup(_ context.Context, lawyerID string) (Lawyer, error) {
	if len(p.lawyers) == 0 {
		return Lawyer{ID: lawyerID, Active: true}, nil
	}
	l, ok := p.lawyers[lawyerID]
	if !ok {
		return Lawyer{}, ErrLawyerNotFound
	}
	return l, nil
}

// ParseSeed reads "id:Name:specialization" entries separated by commas.
func ParseSeed(raw string) []Lawyer {
	var out []Lawyer
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		l := Lawyer{ID: strings.TrimSpace(parts[0]), Active: true}
		if len(parts) > 1 {
			l.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			l.Specialization = strings.TrimSpace(parts[2])
		}
		if l.ID != "" {
			out = append(out, l)
		}
	}
	return out
}

type grpcProvider struct {
	client *directoryv1.Client
}

// NewProvider dials directory-service when addr is set and falls back to the
// permissive static provider otherwise.
func NewProvider(logger *slog.Logger, addr string, seed []Lawyer) (Provider, func() error, error) {
	if strings.TrimSpace(addr) == "" {
		logger.Info("lawyer directory: static provider", "seeded", len(seed))
		return NewStaticProvider(seed...), func() error { return nil }, nil
	}
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("lawyer directory: grpc provider", "addr", addr)
	return &grpcProvider{client: directoryv1.NewClient(conn)}, conn.Close, nil
}

func (p *grpcProvider) Lookup(ctx context.Context, lawyerID string) (Lawyer, error) {
	l, err := p.client.GetLawyer(ctx, lawyerID)
	if errors.Is(err, directoryv1.ErrNotFound) {
		return Lawyer{}, ErrLawyerNotFound
	}
	if err != nil {
		return Lawyer{}, errors.Join(ErrUnavailable, err)
	}
	return Lawyer{ID: l.ID, Name: l.Name, Specialization: l.Specialization, Active: l.Active}, nil
}
