// Package auth verifies bearer tokens, resolves the caller against the user
// directory and gates handlers on the result.
package auth

import "context"

// Identity is what a successful token verification proves about the caller.
// Only the TokenVerifier implementations in this package construct it.
type Identity struct {
	SubjectID   string `json:"subjectId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// User is the per-request result of authentication. InternalID is set only
// when the directory lookup found a record.
type User struct {
	Identity
	InternalID string `json:"internalId,omitempty"`
}

// HasInternalID reports whether the directory resolved the caller.
func (u User) HasInternalID() bool {
	return u.InternalID != ""
}

// ID returns the internal id when known and the subject id otherwise.
func (u User) ID() string {
	if u.HasInternalID() {
		return u.InternalID
	}
	return u.SubjectID
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by the gate, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}
