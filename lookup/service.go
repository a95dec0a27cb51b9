// Package lookup exposes registered namespaces over gRPC as the stash.Lookup
// service. It uses [grpc.ServiceDesc] registration so that no protobuf code
// generation is required.
//
// Because the request/response types are plain Go structs (not generated
// protobuf messages), the package registers a thin codec wrapper that
// JSON-encodes lookup types while delegating all other messages to the
// standard proto codec.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Keksclan/goRawrStash/contextx"
	"github.com/golang/glog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names of the service.
const (
	serviceName   = "stash.Lookup"
	ResolveMethod = "/" + serviceName + "/Resolve"
	PingMethod    = "/" + serviceName + "/Ping"
)

// Handler is the interface that a Lookup service implementation must satisfy.
type Handler interface {
	Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// Service is the Handler backed by namespace bindings.
type Service struct {
	mu       sync.RWMutex
	bindings map[string]Binding
	now      func() time.Time
}

// NewService returns a Service without namespaces.
func NewService() *Service {
	return &Service{bindings: make(map[string]Binding), now: time.Now}
}

// Add makes b reachable under its namespace. Namespaces are unique.
func (s *Service) Add(b Binding) error {
	ns := b.Namespace()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.bindings[ns]; dup {
		return fmt.Errorf("lookup: namespace %q already registered", ns)
	}
	s.bindings[ns] = b
	return nil
}

// Namespaces lists the registered namespaces in sorted order.
func (s *Service) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bindings))
	for ns := range s.bindings {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

func (s *Service) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	if len(req.Keys) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no keys requested")
	}
	s.mu.RLock()
	b, ok := s.bindings[req.Namespace]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown namespace %q", req.Namespace)
	}

	resp, err := b.Resolve(ctx, req.Keys)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return resp, nil
}

func (s *Service) Ping(_ context.Context, req *PingRequest) (*PingResponse, error) {
	return &PingResponse{
		Message:        req.Message,
		ServerTimeUnix: s.now().Unix(),
	}, nil
}

func toStatus(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	glog.Errorf("%slookup: resolve failed: %v", contextx.LogPrefix(ctx), err)
	return status.Error(codes.Internal, err.Error())
}

// ServiceDesc is the grpc.ServiceDesc for the stash.Lookup service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    resolveHandler,
		},
		{
			MethodName: "Ping",
			Handler:    pingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stash/lookup.proto",
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ResolveRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Resolve(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResolveMethod,
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Resolve(ctx, r.(*ResolveRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PingRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Ping(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PingMethod,
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Ping(ctx, r.(*PingRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register registers a Lookup service implementation on the given gRPC server.
func Register(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}

// Client calls a remote stash.Lookup service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Resolve(ctx context.Context, req *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	out := new(ResolveResponse)
	if err := c.cc.Invoke(ctx, ResolveMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context, req *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, PingMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
