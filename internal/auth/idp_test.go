package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testKid      = "test-key-1"
	testAudience = "drinks"
)

var (
	signingKey = sync.OnceValue(func() *rsa.PrivateKey { return mustKey() })
	otherKey   = sync.OnceValue(func() *rsa.PrivateKey { return mustKey() })
)

func mustKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}

func jwkFor(kid string, pub *rsa.PublicKey) JSONWebKey {
	return JSONWebKey{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// testIdP is an identity provider serving a JWKS document over TLS.
type testIdP struct {
	t    *testing.T
	srv  *httptest.Server
	cfg  Config
	hits atomic.Int32

	mu     sync.Mutex
	keys   KeySet
	status int
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()

	p := &testIdP{
		t:      t,
		keys:   KeySet{Keys: []JSONWebKey{jwkFor(testKid, &signingKey().PublicKey)}},
		status: http.StatusOK,
	}
	p.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		p.hits.Add(1)

		p.mu.Lock()
		status, keys := p.status, p.keys
		p.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keys)
	}))
	t.Cleanup(p.srv.Close)

	p.cfg = Config{
		Domain:   strings.TrimPrefix(p.srv.URL, "https://"),
		Audience: testAudience,
	}
	return p
}

func (p *testIdP) setStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *testIdP) setKeys(keys ...JSONWebKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = KeySet{Keys: keys}
}

func (p *testIdP) fetcher() *HTTPFetcher {
	return NewHTTPFetcher(p.cfg.KeySetURL(), time.Second, WithHTTPClient(p.srv.Client()))
}

func (p *testIdP) verifier() *Verifier {
	return NewVerifier(p.cfg, NewFetchingSource(p.fetcher()))
}

// claims returns a valid claim set granting perms.
func (p *testIdP) claims(perms ...string) jwt.MapClaims {
	granted := make([]any, len(perms))
	for i, perm := range perms {
		granted[i] = perm
	}
	now := time.Now()
	return jwt.MapClaims{
		"iss":         p.cfg.Issuer(),
		"sub":         "auth0|barista",
		"aud":         testAudience,
		"iat":         float64(now.Unix()),
		"exp":         float64(now.Add(time.Hour).Unix()),
		"permissions": granted,
	}
}

func (p *testIdP) sign(claims jwt.MapClaims) string {
	return signWith(p.t, signingKey(), testKid, claims)
}

func signWith(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}
