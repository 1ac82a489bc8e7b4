package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_URLs(t *testing.T) {
	cfg := Config{Domain: "coffee.eu.auth0.com"}

	assert.Equal(t, "https://coffee.eu.auth0.com/", cfg.Issuer())
	assert.Equal(t, "https://coffee.eu.auth0.com/.well-known/jwks.json", cfg.KeySetURL())
	assert.Equal(t, []string{"RS256"}, cfg.algorithms())
}

func TestHTTPFetcher_FetchKeySet(t *testing.T) {
	idp := newTestIdP(t)

	set, err := idp.fetcher().FetchKeySet(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)

	k := set.Keys[0]
	assert.Equal(t, testKid, k.Kid)
	assert.Equal(t, "RSA", k.Kty)
	assert.Equal(t, "sig", k.Use)

	pub, err := k.RSAPublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(&signingKey().PublicKey))
}

func TestHTTPFetcher_NoCaching(t *testing.T) {
	idp := newTestIdP(t)
	f := idp.fetcher()

	for range 3 {
		_, err := f.FetchKeySet(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), idp.hits.Load())
}

func TestHTTPFetcher_Unavailable(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		idp := newTestIdP(t)
		idp.setStatus(http.StatusInternalServerError)

		_, err := idp.fetcher().FetchKeySet(context.Background())
		require.ErrorIs(t, err, ErrKeySetUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		f := NewHTTPFetcher("https://127.0.0.1:1/.well-known/jwks.json", time.Second)

		_, err := f.FetchKeySet(context.Background())
		require.ErrorIs(t, err, ErrKeySetUnavailable)
	})

	t.Run("breaker opens", func(t *testing.T) {
		idp := newTestIdP(t)
		idp.setStatus(http.StatusBadGateway)
		f := idp.fetcher()

		for range 5 {
			_, err := f.FetchKeySet(context.Background())
			require.ErrorIs(t, err, ErrKeySetUnavailable)
		}
		hits := idp.hits.Load()

		_, err := f.FetchKeySet(context.Background())
		require.ErrorIs(t, err, ErrKeySetUnavailable)
		assert.Equal(t, hits, idp.hits.Load(), "open breaker must not hit the network")
	})

	t.Run("abandoned requests keep breaker closed", func(t *testing.T) {
		idp := newTestIdP(t)
		f := idp.fetcher()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for range 10 {
			_, err := f.FetchKeySet(ctx)
			require.ErrorIs(t, err, ErrKeySetUnavailable)
		}

		set, err := f.FetchKeySet(context.Background())
		require.NoError(t, err)
		assert.Len(t, set.Keys, 1)
	})
}

func TestKeySet_Find(t *testing.T) {
	set := KeySet{Keys: []JSONWebKey{
		{Kid: "a", N: "first"},
		{Kid: "b"},
		{Kid: "a", N: "second"},
	}}

	k, ok := set.Find("a")
	require.True(t, ok)
	assert.Equal(t, "first", k.N, "first match wins")

	_, ok = set.Find("c")
	assert.False(t, ok)
}

func TestJSONWebKey_RSAPublicKey_Invalid(t *testing.T) {
	valid := jwkFor("k", &signingKey().PublicKey)

	for name, k := range map[string]JSONWebKey{
		"not rsa":      {Kty: "EC", N: valid.N, E: valid.E},
		"bad modulus":  {Kty: "RSA", N: "!!!", E: valid.E},
		"bad exponent": {Kty: "RSA", N: valid.N, E: "!!!"},
		"empty":        {Kty: "RSA"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := k.RSAPublicKey()
			require.Error(t, err)
		})
	}
}

type stubFetcher struct {
	set   *KeySet
	err   error
	calls int
}

func (s *stubFetcher) FetchKeySet(context.Context) (*KeySet, error) {
	s.calls++
	return s.set, s.err
}

func TestFetchingSource(t *testing.T) {
	f := &stubFetcher{set: &KeySet{Keys: []JSONWebKey{{Kid: "a"}}}}
	src := NewFetchingSource(f)

	k, err := src.Key(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", k.Kid)

	_, err = src.Key(context.Background(), "missing")
	require.ErrorIs(t, err, errNoSuchKey)
	assert.Equal(t, 2, f.calls)

	f.err = errors.Wrap(ErrKeySetUnavailable, "down")
	_, err = src.Key(context.Background(), "a")
	require.ErrorIs(t, err, ErrKeySetUnavailable)
}
