package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseSize = 8 << 20

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// QueueSender enqueues a message on a named queue.
type QueueSender interface {
	Send(ctx context.Context, queue, message string) error
}

// FunctionTransport invokes Azure Functions. Request goes over HTTP to the
// function app; Push enqueues on the storage queue that triggers the target.
type FunctionTransport struct {
	client  HTTPDoer
	baseURL string
	key     string
	queues  QueueSender
}

// FunctionOption customises a FunctionTransport.
type FunctionOption func(*FunctionTransport)

// WithFunctionKey sends key as x-functions-key on every request.
func WithFunctionKey(key string) FunctionOption {
	return func(t *FunctionTransport) { t.key = key }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c HTTPDoer) FunctionOption {
	return func(t *FunctionTransport) { t.client = c }
}

// NewFunctionTransport binds a transport to the function app at baseURL and
// to the queue sender used for pushes.
func NewFunctionTransport(baseURL string, queues QueueSender, opts ...FunctionOption) *FunctionTransport {
	t := &FunctionTransport{
		client:  http.DefaultClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		queues:  queues,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request posts payload to {baseURL}/api/{target}.
func (t *FunctionTransport) Request(ctx context.Context, target Target, payload []byte) (res []byte, err error) {
	ctx, span := startSpan(ctx, "transport.request", "function", target)
	defer func() { endSpan(span, err) }()

	if err := checkTarget("request", target); err != nil {
		return nil, err
	}

	url := t.baseURL + "/api/" + string(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "request", Target: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if t.key != "" {
		req.Header.Set("x-functions-key", t.key)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "request", Target: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: "request", Target: target, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case unreachable(resp.StatusCode):
		return nil, &TransportError{Op: "request", Target: target, Err: fmt.Errorf("target unavailable: %s", resp.Status)}
	default:
		return nil, &RemoteInvocationError{Target: target, Message: remoteErrorMessage(body)}
	}
}

// Push enqueues payload on the queue named after target.
func (t *FunctionTransport) Push(ctx context.Context, target Target, payload []byte) (err error) {
	ctx, span := startSpan(ctx, "transport.push", "function", target)
	defer func() { endSpan(span, err) }()

	if err := checkTarget("push", target); err != nil {
		return err
	}
	if t.queues == nil {
		return &TransportError{Op: "push", Target: target, Err: errors.New("queue sender not configured")}
	}
	if err := t.queues.Send(ctx, string(target), string(payload)); err != nil {
		return &TransportError{Op: "push", Target: target, Err: err}
	}
	return nil
}

func unreachable(status int) bool {
	switch status {
	case http.StatusNotFound, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
