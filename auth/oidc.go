package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

const firebaseIssuerPrefix = "https://securetoken.google.com/"

// OIDCVerifier verifies OpenID Connect ID tokens, including Firebase ones.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuer and checks tokens issued
// for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewFirebaseVerifier verifies Firebase Authentication ID tokens for projectID.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*OIDCVerifier, error) {
	return NewOIDCVerifier(ctx, firebaseIssuerPrefix+projectID, projectID)
}

func (v *OIDCVerifier) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return &Identity{SubjectID: idToken.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}
