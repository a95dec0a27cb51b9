package lookup

import "encoding/json"

// ResolveRequest asks for keys of one namespace.
type ResolveRequest struct {
	Namespace string   `json:"namespace"`
	Keys      []string `json:"keys"`
}

// GetNamespace returns the addressed namespace. It is nil-safe, like a
// generated protobuf getter.
func (r *ResolveRequest) GetNamespace() string {
	if r == nil {
		return ""
	}
	return r.Namespace
}

// ResolveResponse carries the JSON encoding of every resolved key and the
// reason of every key that could not be resolved.
type ResolveResponse struct {
	Values map[string]json.RawMessage `json:"values"`
	Failed map[string]string          `json:"failed,omitempty"`
}

// PingRequest is the input for the Ping method.
type PingRequest struct {
	Message string `json:"message"`
}

// PingResponse is the output of the Ping method.
type PingResponse struct {
	Message        string `json:"message"`
	ServerTimeUnix int64  `json:"server_time_unix"`
}

// lookupMsg is a marker interface satisfied by every message of the service.
type lookupMsg interface {
	isLookupMsg()
}

func (*ResolveRequest) isLookupMsg()  {}
func (*ResolveResponse) isLookupMsg() {}
func (*PingRequest) isLookupMsg()     {}
func (*PingResponse) isLookupMsg()    {}
