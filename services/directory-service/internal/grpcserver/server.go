// Package grpcserver exposes the lawyer directory over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/lexconnect/lexconnect/libs/directoryv1"
	"github.com/lexconnect/lexconnect/services/directory-service/internal/storage"
	"google.golang.org/grpc"
)

type server struct {
	store storage.Store
}

func Register(grpcServer grpc.ServiceRegistrar, store storage.Store) {
	directoryv1.RegisterLawyerDirectoryServer(grpcServer, &server{store: store})
}

func (s *server) GetLawyer(ctx context.Context, lawyerID string) (directoryv1.Lawyer, error) {
	l, err := s.store.Get(ctx, strings.TrimSpace(lawyerID))
	if errors.Is(err, storage.ErrNotFound) {
		return directoryv1.Lawyer{}, directoryv1.ErrNotFound
	}
	if err != nil {
		return directoryv1.Lawyer{}, err
	}
	return directoryv1.Lawyer{
		ID:             l.ID,
		Name:           l.Name,
		Email:          l.Email,
		Specialization: l.Specialization,
		Active:         l.Active,
	}, nil
}
