package directoryv1

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type fakeDirectory map[string]Lawyer

func (f fakeDirectory) GetLawyer(_ context.Context, id string) (Lawyer, error) {
	l, ok := f[id]
	if !ok {
		return Lawyer{}, ErrNotFound
	}
	return l, nil
}

func TestGetLawyerOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterLawyerDirectoryServer(srv, fakeDirectory{
		"L1": {ID: "L1", Name: "Ada Counsel", Specialization: "family", Active: true},
	})
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	client := NewClient(conn)
	got, err := client.GetLawyer(context.Background(), "L1")
	if err != nil {
		t.Fatalf("GetLawyer: %v", err)
	}
	if got.Name != "Ada Counsel" || got.Specialization != "family" || !got.Active {
		t.Fatalf("unexpected lawyer %+v", got)
	}

	if _, err := client.GetLawyer(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
