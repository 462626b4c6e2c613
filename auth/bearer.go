package auth

import (
	"errors"
	"strings"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errMissingBearer        = errors.New("invalid jwt, missing bearer token")
)

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an authorization header value. With
// requirePrefix the value must start with "Bearer "; otherwise the prefix is
// stripped when present.
func BearerToken(raw string, requirePrefix bool) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errMissingAuthorization
	}
	var token string
	switch {
	case strings.HasPrefix(trimmed, bearerPrefix):
		token = strings.TrimSpace(trimmed[len(bearerPrefix):])
	case requirePrefix:
		return "", errMissingBearer
	default:
		token = trimmed
	}
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}
