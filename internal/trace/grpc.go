package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor injects trace context into outgoing calls.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, tc := EnsureContext(ctx)
		ctx = metadata.AppendToOutgoingContext(ctx, TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryServerInterceptor continues the caller's trace on incoming calls and
// logs failed RPCs.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		tc := continueFrom(first(md, TraceIDKey), first(md, SpanIDKey))
		ctx = WithContext(ctx, tc)

		resp, err := handler(ctx, req)
		if err != nil {
			Logger(ctx).Warn("rpc failed", "method", info.FullMethod, "error", err)
		}
		return resp, err
	}
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
