// Package grpcbuf runs in-memory gRPC servers over bufconn for tests.
package grpcbuf

import (
	"context"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// CallRecorder records the full method name of every unary call the server receives.
type CallRecorder struct {
	mu    sync.Mutex
	calls []string
}

// Interceptor records the method and forwards the request to the next handler.
func (r *CallRecorder) Interceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	r.mu.Lock()
	r.calls = append(r.calls, info.FullMethod)
	r.mu.Unlock()
	return handler(ctx, req)
}

// Calls returns a copy of the recorded method names in arrival order.
func (r *CallRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many calls hit fullMethod.
func (r *CallRecorder) Count(fullMethod string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == fullMethod {
			n++
		}
	}
	return n
}

// StartServer spins up a bufconn-backed gRPC server with call recording.
// register attaches services before the server starts serving.
func StartServer(register func(*grpc.Server), opts ...grpc.ServerOption) (*grpc.Server, *bufconn.Listener, *CallRecorder) {
	lis := bufconn.Listen(bufSize)
	rec := &CallRecorder{}
	opts = append(opts, grpc.UnaryInterceptor(rec.Interceptor))
	srv := grpc.NewServer(opts...)
	if register != nil {
		register(srv)
	}
	go func() { _ = srv.Serve(lis) }()
	return srv, lis, rec
}

// Dial connects to the provided bufconn listener using the standard gRPC client stack.
func Dial(lis *bufconn.Listener, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	// bufconn has no TLS; the passthrough target keeps the custom dialer in charge.
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	}
	base = append(base, opts...)
	return grpc.NewClient("passthrough://bufnet", base...)
}
