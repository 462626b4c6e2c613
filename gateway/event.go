// Package gateway models the event/response pair exchanged with the function
// host and adapts handlers written against it to echo routes.
package gateway

import (
	"context"
	"errors"
	"strings"
)

// ErrMissingHeaders is returned when an inbound event has no headers field at
// all. It signals a misconfigured trigger rather than a bad request.
var ErrMissingHeaders = errors.New("gateway: event has no headers")

// Request is an inbound HTTP-style event.
type Request struct {
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	Headers               map[string]string `json:"headers"`
	Body                  string            `json:"body,omitempty"`
}

// Header returns the value of the named header, matching case-insensitively.
func (r Request) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Query returns the named query parameter.
func (r Request) Query(name string) (string, bool) {
	v, ok := r.QueryStringParameters[name]
	return v, ok
}

// Response is the outbound result of a Handler.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Handler serves one HTTP-style event. A returned error means the function
// itself failed and no response should be rendered from it.
type Handler func(ctx context.Context, req Request) (Response, error)

// PayloadHandler serves one internal invocation carrying a raw payload.
type PayloadHandler func(ctx context.Context, payload []byte) ([]byte, error)
