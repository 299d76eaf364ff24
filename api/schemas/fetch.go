package schemas

import (
	"net/http"
	"strings"
)

// -- Transport Schemas --

// NVPair represents a simple name-value pair, used for headers.
type NVPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FetchRequest represents one outbound exchange initiated by a script or the
// resource loader.
type FetchRequest struct {
	ID          string   `json:"id,omitempty"`
	URL         string   `json:"url"`
	Method      string   `json:"method"`
	Headers     []NVPair `json:"headers"`
	Body        []byte   `json:"body,omitempty"`
	Credentials string   `json:"credentials,omitempty"`
	Username    string   `json:"username,omitempty"`
	Password    string   `json:"-"`
}

// Header returns the first header value matching name, case-insensitively.
func (r *FetchRequest) Header(name string) (string, bool) {
	return lookup(r.Headers, name)
}

// HTTPHeader converts the header list to an http.Header.
func (r *FetchRequest) HTTPHeader() http.Header {
	h := make(http.Header, len(r.Headers))
	for _, p := range r.Headers {
		h.Add(p.Name, p.Value)
	}
	return h
}

// FetchResponse represents the data from a completed exchange.
type FetchResponse struct {
	URL        string   `json:"url"`
	Status     int      `json:"status"`
	StatusText string   `json:"statusText"`
	Headers    []NVPair `json:"headers"`
	Body       []byte   `json:"body,omitempty"`
}

// Header returns the first header value matching name, case-insensitively.
func (r *FetchResponse) Header(name string) (string, bool) {
	return lookup(r.Headers, name)
}

// HeaderPairs flattens an http.Header into pairs, preserving value order.
func HeaderPairs(h http.Header) []NVPair {
	var out []NVPair
	for name, values := range h {
		for _, v := range values {
			out = append(out, NVPair{Name: name, Value: v})
		}
	}
	return out
}

func lookup(pairs []NVPair, name string) (string, bool) {
	for _, p := range pairs {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}
