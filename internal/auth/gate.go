package auth

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ProtectedFunc is an HTTP operation that runs only after the request was
// authorized. It receives the verified claims ahead of the usual arguments.
type ProtectedFunc func(claims Claims, w http.ResponseWriter, r *http.Request)

// Gate guards protected operations: it extracts the bearer token, verifies
// it and checks the required permission before invoking the operation.
type Gate struct {
	verifier TokenVerifier
	rejected metric.Int64Counter
}

// NewGate creates a Gate using verifier for token validation.
func NewGate(verifier TokenVerifier, mp metric.MeterProvider) (*Gate, error) {
	meter := mp.Meter("github.com/xenking/coffee-shop/internal/auth")
	rejected, err := meter.Int64Counter("auth.rejections",
		metric.WithDescription("Requests rejected by the auth gate"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rejections counter")
	}
	return &Gate{
		verifier: verifier,
		rejected: rejected,
	}, nil
}

// Authorize runs the full auth flow for an Authorization header value and
// returns the verified claims. Any failure is an *Error.
func (g *Gate) Authorize(ctx context.Context, header, permission string) (Claims, error) {
	token, err := TokenFromHeader(header)
	if err != nil {
		return nil, g.reject(ctx, permission, err)
	}
	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, g.reject(ctx, permission, err)
	}
	if err := CheckPermission(permission, claims); err != nil {
		return nil, g.reject(ctx, permission, err)
	}
	return claims, nil
}

func (g *Gate) reject(ctx context.Context, permission string, err error) *Error {
	e, ok := AsError(err)
	if !ok {
		// Verifiers other than *Verifier may return plain errors.
		e = ErrInvalidToken
	}
	g.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("code", e.Code)))
	zctx.From(ctx).Debug("Request rejected",
		zap.String("permission", permission),
		zap.String("code", e.Code),
		zap.Int("status", e.Status),
		zap.NamedError("cause", err),
	)
	return e
}

// Require wraps next so that it is only invoked for requests carrying a
// token granting permission. Rejected requests get the auth error response
// and next is not called.
func (g *Gate) Require(permission string, next ProtectedFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.Authorize(r.Context(), r.Header.Get("Authorization"), permission)
		if err != nil {
			e, _ := AsError(err)
			WriteError(w, e)
			return
		}
		ctx := WithClaims(r.Context(), claims)
		if sub := claims.Subject(); sub != "" {
			ctx = zctx.With(ctx, zap.String("sub", sub))
		}
		next(claims, w, r.WithContext(ctx))
	})
}

// Guard is the transport-agnostic form of Gate.Require: f is called with the
// verified claims only if authorization succeeds, and its result is returned
// unchanged.
func Guard[T any](
	ctx context.Context,
	g *Gate,
	header, permission string,
	f func(ctx context.Context, claims Claims) (T, error),
) (T, error) {
	claims, err := g.Authorize(ctx, header, permission)
	if err != nil {
		var zero T
		return zero, err
	}
	return f(WithClaims(ctx, claims), claims)
}

// WriteError writes e as a JSON failure response.
func WriteError(w http.ResponseWriter, e *Error) {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("success", func(enc *jx.Encoder) { enc.Bool(false) })
		enc.Field("error", func(enc *jx.Encoder) { enc.Int(e.Status) })
		enc.Field("code", func(enc *jx.Encoder) { enc.Str(e.Code) })
		enc.Field("description", func(enc *jx.Encoder) { enc.Str(e.Description) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_, _ = w.Write(enc.Bytes())
}

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by the gate, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}
