package auth

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Kind enumerates the failure classes of the auth flow.
type Kind int

const (
	KindAuthorizationHeaderMissing Kind = iota + 1
	KindMissingToken
	KindInvalidHeader
	KindInvalidRequest
	KindInvalidToken
	KindTokenExpired
	KindPermissionsClaimMissing
	KindUnauthorized
)

// Error is a request rejection produced by the auth flow. The HTTP status is
// assigned where the failure is detected and is never translated later.
type Error struct {
	Kind        Kind
	Code        string
	Description string
	Status      int
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: %s: %s (%d)", e.Code, e.Description, e.Status)
}

// Is matches another *Error of the same Kind, so the predefined errors below
// can be used as targets for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrAuthorizationHeaderMissing = &Error{
		Kind:        KindAuthorizationHeaderMissing,
		Code:        "authorization_header_missing",
		Description: "Expected Header Authorization.",
		Status:      http.StatusUnauthorized,
	}
	ErrMissingToken = &Error{
		Kind:        KindMissingToken,
		Code:        "missing_token",
		Description: "Missing token.",
		Status:      http.StatusNotFound,
	}
	ErrNotBearer = &Error{
		Kind:        KindInvalidHeader,
		Code:        "invalid_header",
		Description: "Start Authorization Header with a bearer.",
		Status:      http.StatusNotFound,
	}
	ErrTooManyParts = &Error{
		Kind:        KindInvalidHeader,
		Code:        "invalid_header",
		Description: "Authorization header must be bearer token.",
		Status:      http.StatusNotFound,
	}
	ErrMalformedHeader = &Error{
		Kind:        KindInvalidHeader,
		Code:        "invalid_header",
		Description: "Authorization malformed.",
		Status:      http.StatusUnauthorized,
	}
	ErrKeyNotFound = &Error{
		Kind:        KindInvalidHeader,
		Code:        "invalid_header",
		Description: "Cannot find key.",
		Status:      http.StatusMethodNotAllowed,
	}
	ErrInvalidRequest = &Error{
		Kind:        KindInvalidRequest,
		Code:        "invalid_request",
		Description: "Invalid requests, please get the correct token.",
		Status:      http.StatusMethodNotAllowed,
	}
	ErrInvalidToken = &Error{
		Kind:        KindInvalidToken,
		Code:        "invalid_token",
		Description: "Cannot render provided token.",
		Status:      http.StatusMethodNotAllowed,
	}
	ErrTokenExpired = &Error{
		Kind:        KindTokenExpired,
		Code:        "token_expired",
		Description: "Token expired.",
		Status:      http.StatusMethodNotAllowed,
	}
	ErrPermissionsClaimMissing = &Error{
		Kind:        KindPermissionsClaimMissing,
		Code:        "invalid_claims",
		Description: "JWT missing required permissions.",
		Status:      http.StatusMethodNotAllowed,
	}
	ErrUnauthorized = &Error{
		Kind:        KindUnauthorized,
		Code:        "unauthorized",
		Description: "Not Authorized.",
		Status:      http.StatusMethodNotAllowed,
	}
)

// ErrKeySetUnavailable is wrapped by key set fetch failures (network, status
// or decoding). Verification reports it as ErrKeyNotFound.
var ErrKeySetUnavailable = errors.New("key set unavailable")

// errCallerGone marks a fetch abandoned by its caller. The circuit breaker does
// not count it against the identity provider.
var errCallerGone = errors.New("key set request abandoned")
