package auth

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/gateway"
)

// Stages a request passes through in the gate. Rejections are tagged with
// the last stage reached.
const (
	StageReceived      = "received"
	StageHeaderChecked = "header_checked"
	StageTokenVerified = "token_verified"
	StageUserResolved  = "user_resolved"
)

// AuthedHandler is a handler that runs only for authenticated callers.
type AuthedHandler func(ctx context.Context, req gateway.Request, user User) (gateway.Response, error)

// Gate authenticates requests before handing them to an AuthedHandler.
type Gate struct {
	auth          Authenticator
	requirePrefix bool
	log           *log.Logger
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithBearerPrefix controls whether the authorization value must start with
// "Bearer ". It is required by default.
func WithBearerPrefix(required bool) GateOption {
	return func(g *Gate) { g.requirePrefix = required }
}

// WithLogger sets the gate's logger.
func WithLogger(logger *log.Logger) GateOption {
	return func(g *Gate) { g.log = logger }
}

func NewGate(a Authenticator, opts ...GateOption) *Gate {
	g := &Gate{auth: a, requirePrefix: true, log: log.StandardLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wrap returns a handler that authenticates the request and then calls next
// with the resolved user. next's response is returned unchanged.
func (g *Gate) Wrap(next AuthedHandler) gateway.Handler {
	return func(ctx context.Context, req gateway.Request) (gateway.Response, error) {
		if req.Headers == nil {
			gateway.SetErrorStage(ctx, StageReceived)
			return gateway.Response{}, gateway.ErrMissingHeaders
		}

		raw, _ := req.Header("authorization")
		token, err := BearerToken(raw, g.requirePrefix)
		if err != nil {
			return g.reject(ctx, StageReceived, err.Error()), nil
		}

		start := time.Now()
		user, err := g.auth.Authenticate(ctx, token)
		gateway.ObserveAuth(ctx, time.Since(start))
		if err != nil {
			stage := StageHeaderChecked
			if errors.Is(err, ErrUnknownUser) {
				stage = StageTokenVerified
			}
			return g.reject(ctx, stage, rejectionMessage(err)), nil
		}

		g.log.WithFields(log.Fields{
			"stage":           StageUserResolved,
			"subject":         user.SubjectID,
			"has_internal_id": user.HasInternalID(),
		}).Debug("request authenticated")
		return next(WithUser(ctx, *user), req, *user)
	}
}

func (g *Gate) reject(ctx context.Context, stage, msg string) gateway.Response {
	gateway.SetErrorStage(ctx, stage)
	g.log.WithFields(log.Fields{"stage": stage, "reason": msg}).Debug("request rejected")
	return gateway.BadRequest(msg)
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnverified):
		return ErrUnverified.Error()
	case errors.Is(err, ErrUnknownUser):
		return ErrUnknownUser.Error()
	default:
		return ErrVerificationUnavailable.Error()
	}
}
