package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is a decoded and verified JWT payload.
type Claims map[string]any

// Subject returns the "sub" claim, if any.
func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

// TokenVerifier turns a raw token into verified claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Claims, error)
}

var _ TokenVerifier = (*Verifier)(nil)

// Verifier validates RSA-signed JWTs issued by the configured identity
// provider. Failures are always one of the *Error values of this package.
type Verifier struct {
	keys       KeySource
	issuer     string
	audience   string
	algorithms []string
	now        func() time.Time
}

// NewVerifier creates a Verifier resolving signing keys through keys.
func NewVerifier(cfg Config, keys KeySource) *Verifier {
	return &Verifier{
		keys:       keys,
		issuer:     cfg.Issuer(),
		audience:   cfg.Audience,
		algorithms: cfg.algorithms(),
		now:        time.Now,
	}
}

// Verify implements TokenVerifier.
func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	kid, ok := unverified.Header["kid"].(string)
	if !ok {
		return nil, ErrMalformedHeader
	}

	jwk, err := v.keys.Key(ctx, kid)
	if err != nil {
		// Unknown kid and unreachable key set look the same to the caller.
		return nil, ErrKeyNotFound
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.algorithms),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
	)
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return jwk.RSAPublicKey()
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return Claims(claims), nil
}

// classify maps a golang-jwt parse error to an auth error. Expiry is checked
// before the other claim errors since the validator reports it as one of them.
func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrInvalidRequest
	default:
		return ErrInvalidToken
	}
}
