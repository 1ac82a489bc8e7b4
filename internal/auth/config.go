package auth

import "time"

// Config describes the identity provider tokens are issued by. It is built
// once at startup and passed by value into the constructors of this package.
type Config struct {
	// Domain is the identity provider host, e.g. "example.eu.auth0.com".
	Domain string
	// Audience is the expected "aud" claim.
	Audience string
	// Algorithms lists accepted signing algorithms. Defaults to RS256.
	Algorithms []string
	// FetchTimeout bounds a single key set request.
	FetchTimeout time.Duration
	// KeyCacheTTL enables the kid-keyed key cache when positive.
	KeyCacheTTL time.Duration
	// KeyCacheSize is the maximum number of cached keys.
	KeyCacheSize int
}

// Issuer returns the expected "iss" claim.
func (c Config) Issuer() string {
	return "https://" + c.Domain + "/"
}

// KeySetURL returns the JWKS endpoint of the identity provider.
func (c Config) KeySetURL() string {
	return "https://" + c.Domain + "/.well-known/jwks.json"
}

func (c Config) algorithms() []string {
	if len(c.Algorithms) == 0 {
		return []string{"RS256"}
	}
	return c.Algorithms
}
