// Package contextx carries the identifiers of a lookup through the stash:
// the request id assigned at the gRPC edge and the namespace being resolved.
// Log lines from the lookup service, the resolver and the fetcher render
// both through [LogPrefix].
package contextx

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	namespaceKey
)

// WithRequestID returns ctx carrying the request id of the current lookup.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithNamespace returns ctx carrying the namespace being resolved.
func WithNamespace(ctx context.Context, ns string) context.Context {
	return context.WithValue(ctx, namespaceKey, ns)
}

// Namespace returns the namespace carried by ctx, or "".
func Namespace(ctx context.Context) string {
	ns, _ := ctx.Value(namespaceKey).(string)
	return ns
}

// LogPrefix renders the identifiers carried by ctx for a log line, e.g.
// "[req=ab12 ns=thing] ". It returns "" when ctx carries neither.
func LogPrefix(ctx context.Context) string {
	id, ns := RequestID(ctx), Namespace(ctx)
	switch {
	case id != "" && ns != "":
		return "[req=" + id + " ns=" + ns + "] "
	case id != "":
		return "[req=" + id + "] "
	case ns != "":
		return "[ns=" + ns + "] "
	}
	return ""
}
