// Package grpcapi exposes capture and gallery operations over gRPC using
// well-known protobuf types, so no generated code is needed.
package grpcapi

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
	"github.com/GriffinCanCode/screen-roaster/internal/trace"
)

const ServiceName = "roaster.v1.Capture"

// MinClientPing is the shortest client keepalive interval tolerated.
const MinClientPing = 10 * time.Second

// Full method names.
const (
	MethodCapture = "/" + ServiceName + "/Capture"
	MethodList    = "/" + ServiceName + "/List"
	MethodRefresh = "/" + ServiceName + "/Refresh"
	MethodDelete  = "/" + ServiceName + "/Delete"
)

// Service is what the gRPC handlers need from the orchestrator.
type Service interface {
	DefaultRequest() capture.Request
	Capture(ctx context.Context, req capture.Request) (capture.Result, error)
	Items() gallery.List
	Refresh(ctx context.Context) (gallery.List, error)
	Delete(ctx context.Context, name string) error
}

type handler struct {
	svc Service
}

// NewServer returns a gRPC server with the capture and health services
// registered and trace propagation installed.
func NewServer(svc Service, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: MinClientPing}),
	)
	s := grpc.NewServer(opts...)
	Register(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func Register(s grpc.ServiceRegistrar, svc Service) {
	s.RegisterService(&serviceDesc, &handler{svc: svc})
}

func (h *handler) capture(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Token == "" {
		def := h.svc.DefaultRequest()
		req.Token = def.Token
	}
	res, err := h.svc.Capture(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return EncodeSaved(Saved{ID: res.ID, Name: filepath.Base(res.Path), Path: res.Path}), nil
}

func (h *handler) list(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return EncodeList(h.svc.Items()), nil
}

func (h *handler) refresh(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	l, err := h.svc.Refresh(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return EncodeList(l), nil
}

func (h *handler) delete(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if in.GetValue() == "" {
		return nil, toStatus(apperrors.New(apperrors.InvalidArgument, "name is required"))
	}
	if err := h.svc.Delete(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus converts err into a gRPC status error carrying ErrorInfo.
func toStatus(err error) error {
	if ae, ok := apperrors.As(err); ok {
		return ae.GRPCStatus().Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return apperrors.Wrap(err, apperrors.Internal, "internal error").GRPCStatus().Err()
}

func unary[Req any, Resp any](call func(*handler, context.Context, *Req) (*Resp, error), method string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(*handler)
		if interceptor == nil {
			return call(h, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(h, ctx, req.(*Req))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Capture", Handler: unary((*handler).capture, MethodCapture)},
		{MethodName: "List", Handler: unary((*handler).list, MethodList)},
		{MethodName: "Refresh", Handler: unary((*handler).refresh, MethodRefresh)},
		{MethodName: "Delete", Handler: unary((*handler).delete, MethodDelete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roaster/v1/capture.proto",
}
