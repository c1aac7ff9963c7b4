// Package grpc implements the gRPC transport for qadesk.
//
// The transport exposes the unary service qadesk.v1.Assistant/Dispatch,
// carrying message.Request and message.Result encoded with a JSON codec
// (content-subtype "json"), next to the standard grpc.health.v1 service.
// It suits native clients and kiosks that already speak gRPC.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/transport"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "qadesk.v1.Assistant"

	dispatchMethod = "/" + ServiceName + "/Dispatch"
)

// jsonCodec marshals messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type assistantServer interface {
	Dispatch(ctx context.Context, req *message.Request) (*message.Result, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*assistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qadesk/v1/assistant.proto",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(assistantServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(assistantServer).Dispatch(ctx, req.(*message.Request))
	}
	return interceptor(ctx, in, info, handler)
}

type service struct {
	handler transport.Handler
}

// Dispatch forwards req to the handler. Classified pipeline failures become
// gRPC status errors carrying the user-facing message.
func (s *service) Dispatch(ctx context.Context, req *message.Request) (*message.Result, error) {
	res, err := s.handler(ctx, req)
	if err != nil {
		slog.Error("dispatch failed", "action", req.Action, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	if res.ErrorKind == "" && res.Error == "" {
		return res, nil
	}
	return nil, status.Error(codeOf(fault.Kind(res.ErrorKind)), res.Error)
}

func codeOf(kind fault.Kind) codes.Code {
	switch kind {
	case fault.KindInput, fault.KindRecognitionEmpty:
		return codes.InvalidArgument
	case fault.KindInvalidTransition:
		return codes.FailedPrecondition
	case fault.KindNotFound:
		return codes.NotFound
	case fault.KindServiceUnavailable, fault.KindExtraction, fault.KindSynthesis:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer()
	t.server.RegisterService(&serviceDesc, &service{handler: handler})

	t.health = health.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// Client calls the Assistant service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection to a qadesk gRPC transport.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dispatch sends one request.
func (c *Client) Dispatch(ctx context.Context, req *message.Request, opts ...grpc.CallOption) (*message.Result, error) {
	out := new(message.Result)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodec{}.Name())}, opts...)
	if err := c.cc.Invoke(ctx, dispatchMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
