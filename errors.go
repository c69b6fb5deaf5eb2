package authclient

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidToken      = "INVALID_TOKEN"
	textCodeSessionExpired    = "SESSION_EXPIRED"
	textCodeNoRoles           = "TOKEN_WITHOUT_ROLES"
	textCodeRouteForbidden    = "ROUTE_FORBIDDEN"
	textCodeServerUnreachable = "SERVER_UNREACHABLE"
	textCodeInvalidTransition = "INVALID_SESSION_TRANSITION"
)

// ErrTokenMalformed is returned when a token cannot be decoded into claims.
// It is converted into a logout at the state machine boundary, never surfaced
// to UI code as a raw exception.
var ErrTokenMalformed = goerrors.New("unable to decode authentication token", goerrors.CategoryBadInput).
	WithTextCode(textCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionExpired is returned when expiry is detected, either by claim
// inspection or by a 401 from a protected endpoint.
var ErrSessionExpired = goerrors.New("session expired, please log in again", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoRoles is returned when a token decodes to an empty role set. Such a
// token is treated as invalid and the session is dropped.
var ErrNoRoles = goerrors.New("token carries no roles", goerrors.CategoryAuth).
	WithTextCode(textCodeNoRoles).
	WithCode(goerrors.CodeUnauthorized)

// ErrRouteForbidden is the guard denial for an authenticated session missing
// the declared roles; distinct from the expired-session redirect to login.
var ErrRouteForbidden = goerrors.New("you do not have access to this view", goerrors.CategoryAuthz).
	WithTextCode(textCodeRouteForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrServerUnreachable is the normalized status-0 transport failure. It is
// surfaced to the caller, never retried by this layer.
var ErrServerUnreachable = goerrors.New("cannot reach server", goerrors.CategoryOperation).
	WithTextCode(textCodeServerUnreachable).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when a requested session status change is
// not in the transition graph.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// hasTextCode matches by the machine-readable code so cloned and wrapped
// variants of a sentinel are recognized.
func hasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, textCodeSessionExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, textCodeInvalidToken) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsInvalidTransitionError reports whether err is a rejected session state
// change.
func IsInvalidTransitionError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, textCodeInvalidTransition) {
		return true
	}
	return strings.Contains(err.Error(), "invalid session state transition")
}

// IsUnreachableError reports whether err is the normalized network failure.
func IsUnreachableError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, textCodeServerUnreachable) {
		return true
	}
	return strings.Contains(err.Error(), "cannot reach server")
}
