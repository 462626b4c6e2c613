package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/transport"
)

var (
	// ErrUnverified means the token was checked and rejected.
	ErrUnverified = errors.New("invalid jwt, token cannot verify given token")
	// ErrVerificationUnavailable means the token could not be checked.
	ErrVerificationUnavailable = errors.New("failed to verify given token")
	// ErrUnknownUser means the token is valid but the directory has no user
	// and the deployment requires one.
	ErrUnknownUser = errors.New("failed to get user")
)

// Authenticator turns a bearer token into a User.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// MissPolicy decides what a directory miss means.
type MissPolicy int

const (
	// AllowMissingUser lets callers without a directory record through
	// without an internal id.
	AllowMissingUser MissPolicy = iota
	// RejectMissingUser fails authentication with ErrUnknownUser.
	RejectMissingUser
)

// ParseMissPolicy accepts "allow" and "reject"; empty means allow.
func ParseMissPolicy(s string) (MissPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return AllowMissingUser, nil
	case "reject":
		return RejectMissingUser, nil
	}
	return AllowMissingUser, fmt.Errorf("unknown missing-user policy %q", s)
}

// LocalAuthenticator verifies tokens and queries the directory in-process.
type LocalAuthenticator struct {
	verifier  *Verifier
	directory Directory
	policy    MissPolicy
	log       *log.Logger
}

func NewLocalAuthenticator(v *Verifier, d Directory, policy MissPolicy, logger *log.Logger) *LocalAuthenticator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LocalAuthenticator{verifier: v, directory: d, policy: policy, log: logger}
}

func (a *LocalAuthenticator) Authenticate(ctx context.Context, token string) (*User, error) {
	id := a.verifier.Verify(ctx, token)
	if id == nil {
		return nil, ErrUnverified
	}
	user := &User{Identity: *id}
	if a.directory == nil {
		return a.miss(user)
	}

	rec, err := a.directory.FindBySubject(ctx, id.SubjectID)
	switch {
	case err == nil && rec != nil:
		user.InternalID = rec.ID
		return user, nil
	case err == nil, errors.Is(err, ErrUserNotFound):
		a.log.WithField("subject", id.SubjectID).Debug("no directory record for subject")
	default:
		a.log.WithError(err).WithField("subject", id.SubjectID).Error("directory lookup failed")
	}
	return a.miss(user)
}

func (a *LocalAuthenticator) miss(user *User) (*User, error) {
	if a.policy == RejectMissingUser {
		return nil, ErrUnknownUser
	}
	return user, nil
}

// AuthenticateRequest is the payload sent to the authenticate function.
type AuthenticateRequest struct {
	Token string `json:"token"`
}

// RemoteAuthenticator delegates verification and lookup to the authenticate
// function over a Transport.
type RemoteAuthenticator struct {
	transport transport.Transport
	target    transport.Target
	log       *log.Logger
}

func NewRemoteAuthenticator(t transport.Transport, target transport.Target, logger *log.Logger) *RemoteAuthenticator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RemoteAuthenticator{transport: t, target: target, log: logger}
}

func (a *RemoteAuthenticator) Authenticate(ctx context.Context, token string) (*User, error) {
	payload, err := sonic.Marshal(AuthenticateRequest{Token: token})
	if err != nil {
		return nil, err
	}
	res, err := a.transport.Request(ctx, a.target, payload)
	if err != nil {
		var remote *transport.RemoteInvocationError
		if errors.As(err, &remote) {
			a.log.WithField("detail", remote.Message).Warn("authenticate function rejected token")
			if remote.Message == ErrUnknownUser.Error() {
				return nil, ErrUnknownUser
			}
			return nil, ErrUnverified
		}
		a.log.WithError(err).Error("authenticate function unavailable")
		return nil, ErrVerificationUnavailable
	}

	var user User
	if err := sonic.Unmarshal(res, &user); err != nil {
		a.log.WithError(err).Error("decode authenticate response")
		return nil, ErrVerificationUnavailable
	}
	if user.SubjectID == "" {
		a.log.Error("authenticate response carries no subject")
		return nil, ErrVerificationUnavailable
	}
	return &user, nil
}
