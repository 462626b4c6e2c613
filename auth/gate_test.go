package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/transport"
)

type capture struct {
	called bool
	user   User
	ctx    context.Context
}

func (c *capture) handler(ctx context.Context, req gateway.Request, user User) (gateway.Response, error) {
	c.called = true
	c.user = user
	c.ctx = ctx
	return gateway.Text(http.StatusOK, `{"ok":true}`), nil
}

func newGate(t *testing.T, a Authenticator, opts ...GateOption) *Gate {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewGate(a, append([]GateOption{WithLogger(logger)}, opts...)...)
}

func TestGateRejections(t *testing.T) {
	dir := &fakeDirectory{}
	a := newLocal(t, dir, AllowMissingUser)

	tests := []struct {
		name    string
		headers map[string]string
		opts    []GateOption
		body    string
	}{
		{name: "missing header", headers: map[string]string{}, body: "missing authorization header"},
		{name: "blank header", headers: map[string]string{"authorization": "   "}, body: "missing authorization header"},
		{name: "missing prefix", headers: map[string]string{"authorization": "tok1"}, body: "invalid jwt, missing bearer token"},
		{name: "unverifiable token", headers: map[string]string{"authorization": "Bearer nope"}, body: "invalid jwt, token cannot verify given token"},
		{name: "unverifiable token without prefix", headers: map[string]string{"authorization": "nope"}, opts: []GateOption{WithBearerPrefix(false)}, body: "invalid jwt, token cannot verify given token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &capture{}
			h := newGate(t, a, tt.opts...).Wrap(c.handler)

			resp, err := h(context.Background(), gateway.Request{Headers: tt.headers})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.called {
				t.Fatalf("handler must not be invoked")
			}
			if resp.StatusCode != http.StatusBadRequest || resp.Body != tt.body {
				t.Fatalf("unexpected response: %d %q", resp.StatusCode, resp.Body)
			}
			if resp.Headers["Access-Control-Allow-Origin"] != "*" || resp.Headers["Content-Type"] != "application/json" {
				t.Fatalf("missing default headers: %#v", resp.Headers)
			}
		})
	}
}

func TestGateMissingHeadersIsConfigurationError(t *testing.T) {
	c := &capture{}
	h := newGate(t, newLocal(t, &fakeDirectory{}, AllowMissingUser)).Wrap(c.handler)

	resp, err := h(context.Background(), gateway.Request{})
	if !errors.Is(err, gateway.ErrMissingHeaders) {
		t.Fatalf("expected ErrMissingHeaders, got %v", err)
	}
	if resp.StatusCode != 0 {
		t.Fatalf("expected no response, got %+v", resp)
	}
	if c.called {
		t.Fatalf("handler must not be invoked")
	}
}

func TestGateDirectoryHit(t *testing.T) {
	dir := &fakeDirectory{records: map[string]UserRecord{"uid-1": {ID: "internal-1"}}}
	c := &capture{}
	h := newGate(t, newLocal(t, dir, AllowMissingUser)).Wrap(c.handler)

	resp, err := h(context.Background(), gateway.Request{Headers: map[string]string{"authorization": "Bearer tok1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.called || c.user.InternalID != "internal-1" {
		t.Fatalf("expected handler with internal id, got %+v", c.user)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"ok":true}` {
		t.Fatalf("handler response not passed through: %+v", resp)
	}
	if u, ok := UserFromContext(c.ctx); !ok || u != c.user {
		t.Fatalf("user not stored in context")
	}
}

func TestGateDirectoryMissStillInvokesHandler(t *testing.T) {
	c := &capture{}
	h := newGate(t, newLocal(t, &fakeDirectory{}, AllowMissingUser)).Wrap(c.handler)

	_, err := h(context.Background(), gateway.Request{Headers: map[string]string{"Authorization": "Bearer tok1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := User{Identity: Identity{SubjectID: "uid-1", Email: "a@b.c"}}
	if !c.called || c.user != want {
		t.Fatalf("unexpected user: %+v", c.user)
	}
}

func TestGateRejectsUnknownUserWhenRequired(t *testing.T) {
	c := &capture{}
	h := newGate(t, newLocal(t, &fakeDirectory{}, RejectMissingUser)).Wrap(c.handler)

	resp, _ := h(context.Background(), gateway.Request{Headers: map[string]string{"authorization": "Bearer tok1"}})
	if c.called || resp.Body != "failed to get user" {
		t.Fatalf("unexpected outcome: called=%v body=%q", c.called, resp.Body)
	}
}

func TestGateDelegatedMode(t *testing.T) {
	logger, _ := test.NewNullLogger()
	tests := []struct {
		name   string
		tr     *fakeTransport
		called bool
		body   string
	}{
		{name: "remote success", tr: &fakeTransport{res: []byte(`{"subjectId":"uid-1"}`)}, called: true, body: `{"ok":true}`},
		{name: "remote rejection", tr: &fakeTransport{err: &transport.RemoteInvocationError{Message: "bad"}}, body: "invalid jwt, token cannot verify given token"},
		{name: "transport failure", tr: &fakeTransport{err: &transport.TransportError{Op: "request", Err: errors.New("dial")}}, body: "failed to verify given token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &capture{}
			h := newGate(t, NewRemoteAuthenticator(tt.tr, "authenticate", logger)).Wrap(c.handler)
			resp, err := h(context.Background(), gateway.Request{Headers: map[string]string{"authorization": "Bearer tok1"}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.called != tt.called || resp.Body != tt.body {
				t.Fatalf("unexpected outcome: called=%v body=%q", c.called, resp.Body)
			}
		})
	}
}
