package auth

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

var errEmptyToken = errors.New("empty token")

// TokenVerifier checks a raw token with an identity provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// Verifier reduces every verification failure to a nil identity.
type Verifier struct {
	provider TokenVerifier
	log      *log.Logger
}

func NewVerifier(provider TokenVerifier, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Verifier{provider: provider, log: logger}
}

// Verify returns the caller's identity, or nil when the token is absent,
// malformed, expired or rejected. The reason is logged.
func (v *Verifier) Verify(ctx context.Context, token string) *Identity {
	if token == "" {
		v.log.WithError(errEmptyToken).Warn("token verification failed")
		return nil
	}
	id, err := v.provider.VerifyToken(ctx, token)
	if err != nil {
		v.log.WithError(err).Warn("token verification failed")
		return nil
	}
	if id == nil || id.SubjectID == "" {
		v.log.Warn("token verification failed: provider returned no subject")
		return nil
	}
	return id
}
