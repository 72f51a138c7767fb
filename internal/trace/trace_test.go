package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestNewContext(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("root context should not have a parent span")
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New().TraceID
		if seen[id] {
			t.Fatal("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}

	orphan := NewChild(Context{})
	if orphan.TraceID == "" || orphan.ParentSpanID != "" {
		t.Errorf("child of zero context should be a root, got %+v", orphan)
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}

	_, again := EnsureContext(ctx)
	if again.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestSpanLifecycle(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "capture_session")
	_, child := StartSpan(ctx, "persist")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}
	if parent.Duration() != 0 {
		t.Error("open span should report zero duration")
	}

	parent.SetAttr("session_id", "01J")
	parent.End()
	end := parent.EndTime
	parent.End()

	if parent.EndTime != end {
		t.Error("End should be idempotent")
	}
	if parent.Attrs["session_id"] != "01J" {
		t.Error("span attribute mismatch")
	}
}

func TestMiddlewareContinuesTrace(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/screenshots", http.NoBody)
	req.Header.Set(TraceIDKey, "0123456789abcdef0123456789abcdef")
	req.Header.Set(SpanIDKey, "0123456789abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.TraceID != "0123456789abcdef0123456789abcdef" {
		t.Errorf("TraceID = %q", got.TraceID)
	}
	if got.ParentSpanID != "0123456789abcdef" {
		t.Errorf("ParentSpanID = %q", got.ParentSpanID)
	}
	if rec.Header().Get(TraceIDKey) != got.TraceID {
		t.Error("response should echo trace ID")
	}
}

func TestServerInterceptorReadsMetadata(t *testing.T) {
	md := metadata.Pairs(TraceIDKey, "feedfacefeedfacefeedfacefeedface", SpanIDKey, "feedfacefeedface")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var got Context
	_, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, _ any) (any, error) {
			got, _ = FromContext(ctx)
			return nil, nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if got.TraceID != "feedfacefeedfacefeedfacefeedface" || got.ParentSpanID != "feedfacefeedface" {
		t.Errorf("unexpected context %+v", got)
	}
}
