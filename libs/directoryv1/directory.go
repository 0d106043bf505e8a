// Package directoryv1 is the wire contract of the lawyer directory RPC.
//
// Messages travel as google.protobuf.Struct so no generated stubs are needed;
// the helpers here convert them to and from Go types.
package directoryv1

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName     = "legal.directory.v1.LawyerDirectory"
	GetLawyerMethod = "/" + ServiceName + "/GetLawyer"
)

// Lawyer is the directory record returned by GetLawyer.
type Lawyer struct {
	ID             string
	Name           string
	Email          string
	Specialization string
	Active         bool
}

func (l Lawyer) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":             l.ID,
		"name":           l.Name,
		"email":          l.Email,
		"specialization": l.Specialization,
		"active":         l.Active,
	})
}

func lawyerFromStruct(s *structpb.Struct) Lawyer {
	f := s.GetFields()
	return Lawyer{
		ID:             f["id"].GetStringValue(),
		Name:           f["name"].GetStringValue(),
		Email:          f["email"].GetStringValue(),
		Specialization: f["specialization"].GetStringValue(),
		Active:         f["active"].GetBoolValue(),
	}
}

// LawyerDirectoryServer is implemented by directory-service.
type LawyerDirectoryServer interface {
	GetLawyer(ctx context.Context, lawyerID string) (Lawyer, error)
}

// ErrNotFound is returned by a server (and surfaced by the client) for unknown ids.
var ErrNotFound = errors.New("lawyer not found")

func RegisterLawyerDirectoryServer(s grpc.ServiceRegistrar, srv LawyerDirectoryServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LawyerDirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetLawyer", Handler: getLawyerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "legal/directory/v1/directory.proto",
}

func getLawyerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		id := req.(*structpb.Struct).GetFields()["id"].GetStringValue()
		if id == "" {
			return nil, status.Error(codes.InvalidArgument, "id is required")
		}
		lawyer, err := srv.(LawyerDirectoryServer).GetLawyer(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "lawyer %q not found", id)
		}
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return lawyer.toStruct()
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: GetLawyerMethod}, call)
}

// Client calls the directory over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetLawyer(ctx context.Context, lawyerID string) (Lawyer, error) {
	req, err := structpb.NewStruct(map[string]any{"id": lawyerID})
	if err != nil {
		return Lawyer{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetLawyerMethod, req, out); err != nil {
		if status.Code(err) == codes.NotFound {
			return Lawyer{}, ErrNotFound
		}
		return Lawyer{}, fmt.Errorf("directory GetLawyer: %w", err)
	}
	return lawyerFromStruct(out), nil
}
