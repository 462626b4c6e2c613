package api

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/gateway"
)

var errMissingToken = errors.New("missing bearer token")

// Register mounts the authenticate function used by gates running in
// delegated mode.
func Register(e *echo.Echo, a auth.Authenticator, logger *log.Logger) {
	gateway.MountFunction(e, "/api/authenticate", Authenticate(a, logger), logger)
}

// Authenticate verifies the token in an AuthenticateRequest and returns the
// resolved auth.User.
func Authenticate(a auth.Authenticator, logger *log.Logger) gateway.PayloadHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req auth.AuthenticateRequest
		if err := sonic.Unmarshal(payload, &req); err != nil {
			return nil, errMissingToken
		}
		token, err := auth.BearerToken(req.Token, false)
		if err != nil {
			return nil, errMissingToken
		}

		user, err := a.Authenticate(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUnknownUser):
				return nil, auth.ErrUnknownUser
			case errors.Is(err, auth.ErrUnverified):
				return nil, auth.ErrUnverified
			}
			logger.WithError(err).Error("authenticate")
			return nil, err
		}
		return sonic.Marshal(user)
	}
}
