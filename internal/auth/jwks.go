package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// KeySet is a JSON Web Key Set document.
type KeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// JSONWebKey is a single public signing key of a KeySet.
type JSONWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Find returns the first key whose kid equals kid.
func (s *KeySet) Find(kid string) (JSONWebKey, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JSONWebKey{}, false
}

// RSAPublicKey decodes the base64url modulus and exponent of an RSA key.
func (k JSONWebKey) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, errors.Errorf("unsupported key type %q", k.Kty)
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, errors.Wrap(err, "decode modulus")
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, errors.Wrap(err, "decode exponent")
	}
	exp := new(big.Int).SetBytes(e)
	if len(n) == 0 || !exp.IsInt64() || exp.Int64() <= 1 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("invalid rsa key parameters")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exp.Int64()),
	}, nil
}

// KeySetFetcher retrieves the current key set of the identity provider.
type KeySetFetcher interface {
	FetchKeySet(ctx context.Context) (*KeySet, error)
}

var _ KeySetFetcher = (*HTTPFetcher)(nil)

// HTTPFetcher downloads the key set over HTTP on every call. Failures are
// reported as ErrKeySetUnavailable and are never retried.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	lg      *zap.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the client used for key set requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithLogger sets the logger for circuit breaker state changes.
func WithLogger(lg *zap.Logger) FetcherOption {
	return func(f *HTTPFetcher) { f.lg = lg }
}

// NewHTTPFetcher creates a fetcher for the JWKS document at url.
func NewHTTPFetcher(url string, timeout time.Duration, opts ...FetcherOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		lg:     zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "jwks",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller giving up says nothing about the identity provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.lg.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	return f
}

// FetchKeySet implements KeySetFetcher.
func (f *HTTPFetcher) FetchKeySet(ctx context.Context) (*KeySet, error) {
	v, err := f.breaker.Execute(func() (any, error) {
		set, err := f.fetch(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, errors.Wrapf(errCallerGone, "%s", err.Error())
		}
		return set, err
	})
	if err != nil {
		if errors.Is(err, ErrKeySetUnavailable) {
			return nil, err
		}
		// Open breaker or abandoned request.
		return nil, errors.Wrapf(ErrKeySetUnavailable, "%s", err.Error())
	}
	return v.(*KeySet), nil
}

func (f *HTTPFetcher) fetch(ctx context.Context) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrKeySetUnavailable, "create request: %s", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrKeySetUnavailable, "fetch: %s", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrKeySetUnavailable, "fetch returned status %d", resp.StatusCode)
	}

	var set KeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, errors.Wrapf(ErrKeySetUnavailable, "decode: %s", err)
	}
	return &set, nil
}
