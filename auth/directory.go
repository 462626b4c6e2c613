package auth

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by a Directory with no record for the subject.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is a user directory row.
type UserRecord struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Directory resolves identity-provider subjects to internal users.
type Directory interface {
	FindBySubject(ctx context.Context, subjectID string) (*UserRecord, error)
}
