package fetch

import (
	"net/http"
	"net/url"
	"strings"
)

// Request describes one upstream resource.
type Request struct {
	// Endpoint is the absolute URL without query parameters.
	Endpoint string
	// Params are encoded into the query string.
	Params url.Values
	// Header is sent with every attempt.
	Header http.Header
}

// URL returns the full request URL.
func (r Request) URL() string {
	if len(r.Params) == 0 {
		return r.Endpoint
	}
	sep := "?"
	if strings.Contains(r.Endpoint, "?") {
		sep = "&"
	}
	return r.Endpoint + sep + r.Params.Encode()
}
