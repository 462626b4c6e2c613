package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const defaultJWKSCacheTTL = 15 * time.Minute

// JWTConfig configures a JWTVerifier.
type JWTConfig struct {
	Audience string
	Issuer   string
	// TestSecret switches the verifier to HS256 with this shared secret.
	TestSecret []byte
	// KeyCacheTTL bounds how long a key resolved by kid is reused.
	KeyCacheTTL time.Duration
}

// JWTVerifier verifies RS256 tokens against a JWKS, or HS256 tokens in test
// mode.
type JWTVerifier struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewJWTVerifier builds a verifier. jwks may be nil in test mode.
func NewJWTVerifier(jwks *keyfunc.JWKS, cfg JWTConfig) *JWTVerifier {
	v := &JWTVerifier{
		JWKS:        jwks,
		Audience:    cfg.Audience,
		Issuer:      cfg.Issuer,
		keyCacheTTL: cfg.KeyCacheTTL,
	}
	if v.keyCacheTTL == 0 {
		v.keyCacheTTL = defaultJWKSCacheTTL
	}
	if len(cfg.TestSecret) > 0 {
		v.TestMode = true
		v.TestSecret = cfg.TestSecret
		v.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	} else {
		v.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	}
	return v
}

func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, errEmptyToken
	}

	var keyFunc jwt.Keyfunc
	if v.TestMode {
		keyFunc = func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return v.TestSecret, nil
		}
	} else {
		keyFunc = v.keyForToken
	}
	parsed, err := v.parser.Parse(token, keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	if err := v.checkClaims(claims, time.Now()); err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("missing sub")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &Identity{SubjectID: sub, Email: email, DisplayName: name}, nil
}

// clockSkew is tolerated between the identity provider and this host.
const clockSkew = time.Minute

// checkClaims validates the time window and, when configured, the audience
// and issuer. exp is mandatory; nbf and iat are checked only when present.
func (v *JWTVerifier) checkClaims(claims jwt.MapClaims, now time.Time) error {
	at := now.Add(clockSkew).Unix()
	checks := []struct {
		ok  bool
		err string
	}{
		{claims.VerifyExpiresAt(at, true), "token expired"},
		{claims.VerifyNotBefore(at, false), "token not valid yet"},
		{claims.VerifyIssuedAt(at, false), "token used before issued"},
		{v.Audience == "" || claims.VerifyAudience(v.Audience, false), "invalid audience"},
		{v.Issuer == "" || claims.VerifyIssuer(v.Issuer, false), "invalid issuer"},
	}
	for _, c := range checks {
		if !c.ok {
			return errors.New(c.err)
		}
	}
	return nil
}

// keyForToken resolves the signing key from the JWKS, reusing keys by kid for
// keyCacheTTL.
func (v *JWTVerifier) keyForToken(token *jwt.Token) (any, error) {
	if v.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}
	kid, _ := token.Header["kid"].(string)
	if key, ok := v.cachedKey(kid); ok {
		return key, nil
	}

	key, err := v.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && v.keyCacheTTL > 0 {
		v.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(v.keyCacheTTL)})
	}
	return key, nil
}

func (v *JWTVerifier) cachedKey(kid string) (any, bool) {
	if kid == "" || v.keyCacheTTL <= 0 {
		return nil, false
	}
	raw, ok := v.keyCache.Load(kid)
	if !ok {
		return nil, false
	}
	entry := raw.(cachedKey)
	if !time.Now().Before(entry.expiresAt) {
		v.keyCache.Delete(kid)
		return nil, false
	}
	return entry.key, true
}
