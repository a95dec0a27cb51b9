package gorawrstash

// DefaultOptions returns the recommended set of options for production use:
// panic recovery and request ids on the lookup service.
func DefaultOptions() []Option {
	return []Option{
		WithRecovery(),
		WithRequestID(),
	}
}
