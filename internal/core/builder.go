package core

import "google.golang.org/grpc"

// BuildServerOptions translates the interceptor slice into grpc.ServerOption
// values that can be passed to grpc.NewServer, followed by extra.
func BuildServerOptions(
	unary []grpc.UnaryServerInterceptor,
	chainUnary func([]grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor,
	extra ...grpc.ServerOption,
) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if u := chainUnary(unary); u != nil {
		opts = append(opts, grpc.UnaryInterceptor(u))
	}

	return append(opts, extra...)
}
