// Package grpcclient is the client for a remote capture server.
package grpcclient

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/grpcapi"
	"github.com/GriffinCanCode/screen-roaster/internal/resilience"
	"github.com/GriffinCanCode/screen-roaster/internal/trace"
)

// Client talks to grpcapi. Every call passes the circuit breaker; only
// idempotent reads are retried.
type Client struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

type Option func(*options)

type options struct {
	breaker resilience.Config
	retry   resilience.RetryConfig
	dial    []grpc.DialOption
}

func WithBreaker(cfg resilience.Config) Option {
	return func(o *options) { o.breaker = cfg }
}

func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.retry = cfg }
}

// WithDialOptions appends raw dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dial = append(o.dial, opts...) }
}

// New creates a client. The connection is established lazily.
func New(addr string, opts ...Option) (*Client, error) {
	o := options{breaker: resilience.DefaultConfig(), retry: resilience.DefaultRetryConfig()}
	for _, fn := range opts {
		fn(&o)
	}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
	}, o.dial...)

	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidArgument, "invalid server address %q", addr)
	}
	return &Client{
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		breaker: resilience.New(o.breaker),
		retry:   o.retry,
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Breaker exposes the circuit breaker state.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// Capture asks the server to take one screenshot. Never retried: a
// capture that timed out may still have been saved.
func (c *Client) Capture(ctx context.Context, req capture.Request) (grpcapi.Saved, error) {
	ctx, cancel := withTimeout(ctx, CaptureTimeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.invoke(ctx, grpcapi.MethodCapture, grpcapi.EncodeRequest(req), out); err != nil {
		return grpcapi.Saved{}, err
	}
	return grpcapi.DecodeSaved(out), nil
}

// List returns the server's current gallery, newest first.
func (c *Client) List(ctx context.Context) ([]grpcapi.Item, error) {
	return c.listCall(ctx, grpcapi.MethodList)
}

// Refresh makes the server rescan its directory first.
func (c *Client) Refresh(ctx context.Context) ([]grpcapi.Item, error) {
	return c.listCall(ctx, grpcapi.MethodRefresh)
}

func (c *Client) listCall(ctx context.Context, method string) ([]grpcapi.Item, error) {
	out := new(structpb.ListValue)
	err := resilience.Retry(ctx, c.retry, func() error {
		callCtx, cancel := withTimeout(ctx, CallTimeout)
		defer cancel()
		return c.invokeRaw(callCtx, method, &emptypb.Empty{}, out)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return grpcapi.DecodeList(out)
}

func (c *Client) Delete(ctx context.Context, name string) error {
	ctx, cancel := withTimeout(ctx, CallTimeout)
	defer cancel()
	return c.invoke(ctx, grpcapi.MethodDelete, wrapperspb.String(name), new(emptypb.Empty))
}

// Health checks that the capture service reports SERVING.
func (c *Client) Health(ctx context.Context) error {
	err := resilience.Retry(ctx, c.retry, func() error {
		callCtx, cancel := withTimeout(ctx, HealthTimeout)
		defer cancel()
		resp, err := resilience.Call(c.breaker, func() (*healthpb.HealthCheckResponse, error) {
			return c.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: grpcapi.ServiceName})
		})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return apperrors.Newf(apperrors.Internal, "capture service is %s", resp.GetStatus())
		}
		return nil
	})
	return mapError(err)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return mapError(c.invokeRaw(ctx, method, in, out))
}

func (c *Client) invokeRaw(ctx context.Context, method string, in, out any) error {
	_, err := resilience.Call(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.conn.Invoke(ctx, method, in, out)
	})
	return err
}

// mapError turns wire errors back into AppErrors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, resilience.ErrOpen):
		return apperrors.Wrap(err, apperrors.Internal, "capture server unreachable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.Cancelled, "request cancelled")
	}
	return apperrors.FromGRPCError(err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
