package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region service
// Control service messages are protobuf well-known types:
//
//	Assign(StringValue "<name>=<command>") returns (StringValue)
//	Show(StringValue "<name>") returns (StringValue "<name>=<description>")
//	Go(Empty) returns (Empty)
//	Names(Empty) returns (ListValue of names)
const controlServiceName = "stimcore.remote.v1.Control"

// ControlServer is the server API of the control service.
type ControlServer interface {
	Assign(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Show(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Go(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Names(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: controlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Assign", Handler: unaryHandler("Assign", func(srv ControlServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return srv.Assign(ctx, in)
		})},
		{MethodName: "Show", Handler: unaryHandler("Show", func(srv ControlServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return srv.Show(ctx, in)
		})},
		{MethodName: "Go", Handler: unaryHandler("Go", func(srv ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Go(ctx, in)
		})},
		{MethodName: "Names", Handler: unaryHandler("Names", func(srv ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Names(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stimcore/remote/v1/control.proto",
}

// unaryHandler adapts a typed method to grpc's untyped handler signature.
func unaryHandler[Req any, PReq interface {
	*Req
}](method string, call func(ControlServer, context.Context, PReq) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + controlServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service

// #region server
// RPCServer implements ControlServer on top of a Registry.
type RPCServer struct {
	registry *Registry
	trigger  *Trigger
}

// NewRPCServer creates the control service. trigger may be nil.
func NewRPCServer(registry *Registry, trigger *Trigger) *RPCServer {
	return &RPCServer{registry: registry, trigger: trigger}
}

func (s *RPCServer) Assign(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	line := strings.TrimSpace(in.GetValue())
	name, text, ok := strings.Cut(line, "=")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "Error with line: "+line)
	}
	origin := "grpc"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		origin = "grpc:" + p.Addr.String()
	}
	err := s.registry.Submit(strings.TrimSpace(name), strings.TrimSpace(text), origin)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			slog.Info("rejected replacement", "origin", origin, "name", perr.Name, "error", perr.Err)
			return nil, status.Error(codes.InvalidArgument, perr.Error())
		}
		if errors.Is(err, ErrUnknownName) {
			return nil, status.Error(codes.NotFound, "Error with line: "+line)
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String("queued"), nil
}

func (s *RPCServer) Show(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	name := strings.TrimSpace(in.GetValue())
	p, ok := s.registry.Lookup(name)
	if !ok {
		return nil, status.Error(codes.NotFound, "Error with line: "+name)
	}
	return wrapperspb.String(name + "=" + p.Describe()), nil
}

func (s *RPCServer) Go(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	if s.trigger == nil {
		return nil, status.Error(codes.Unimplemented, "no trigger on this server")
	}
	s.trigger.Fire()
	return &emptypb.Empty{}, nil
}

func (s *RPCServer) Names(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	names := s.registry.Names()
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = n
	}
	list, err := structpb.NewList(vals)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return list, nil
}

// #endregion server

// #region client
// ControlClient is the client API of the control service.
type ControlClient interface {
	Assign(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Show(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Go(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Names(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type controlClient struct {
	cc grpc.ClientConnInterface
}

// NewControlClient creates a client stub on cc.
func NewControlClient(cc grpc.ClientConnInterface) ControlClient {
	return &controlClient{cc: cc}
}

func (c *controlClient) Assign(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+controlServiceName+"/Assign", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlClient) Show(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+controlServiceName+"/Show", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlClient) Go(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+controlServiceName+"/Go", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlClient) Names(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+controlServiceName+"/Names", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RPCClient wraps the gRPC connection to a stimulus host.
type RPCClient struct {
	conn   *grpc.ClientConn
	client ControlClient
}

// NewRPCClient connects to the control service at addr.
func NewRPCClient(addr string, opts ...grpc.DialOption) (*RPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &RPCClient{conn: conn, client: NewControlClient(conn)}, nil
}

// NewRPCClientWithService creates an RPCClient around an existing stub.
// Used for testing without a real gRPC connection.
func NewRPCClientWithService(svc ControlClient) *RPCClient {
	return &RPCClient{client: svc}
}

// Close shuts down the gRPC connection.
func (c *RPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Assign asks the host to replace name's controller with command.
func (c *RPCClient) Assign(ctx context.Context, name, command string) error {
	if _, err := c.client.Assign(ctx, wrapperspb.String(name+"="+command)); err != nil {
		return fmt.Errorf("assign rpc: %w", err)
	}
	return nil
}

// Show returns "<name>=<description>" for name's current controller.
func (c *RPCClient) Show(ctx context.Context, name string) (string, error) {
	resp, err := c.client.Show(ctx, wrapperspb.String(name))
	if err != nil {
		return "", fmt.Errorf("show rpc: %w", err)
	}
	return resp.GetValue(), nil
}

// Go requests the next trial.
func (c *RPCClient) Go(ctx context.Context) error {
	if _, err := c.client.Go(ctx, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("go rpc: %w", err)
	}
	return nil
}

// Names lists the controllable names.
func (c *RPCClient) Names(ctx context.Context) ([]string, error) {
	resp, err := c.client.Names(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("names rpc: %w", err)
	}
	names := make([]string, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		names = append(names, v.GetStringValue())
	}
	return names, nil
}

// #endregion client
