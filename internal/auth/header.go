package auth

import "strings"

// TokenFromHeader extracts the raw bearer token from an Authorization header
// value. An empty value means the header was absent.
func TokenFromHeader(value string) (string, error) {
	if value == "" {
		return "", ErrAuthorizationHeaderMissing
	}

	parts := strings.Fields(value)
	switch {
	case len(parts) <= 1:
		// A whitespace-only header has no token part either.
		return "", ErrMissingToken
	case !strings.EqualFold(parts[0], "bearer"):
		return "", ErrNotBearer
	case len(parts) > 2:
		return "", ErrTooManyParts
	}

	return parts[1], nil
}
