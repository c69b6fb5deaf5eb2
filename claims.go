package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the structured, decoded view of a token payload.
// It is derived, never authoritative: the server re-validates every token on
// protected endpoints regardless of what a local decode produced.
type AuthClaims interface {
	Subject() string
	Email() string
	Roles() []UserRole
	HasRole(role UserRole) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// Claims is the concrete implementation of AuthClaims
type Claims struct {
	jwt.RegisteredClaims
	UserRoles  []string `json:"roles,omitempty"`
	EmailClaim string   `json:"email,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*Claims)(nil)

// Subject returns the subject claim (the username)
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Email returns the email claim
func (c *Claims) Email() string {
	return c.EmailClaim
}

// Roles returns the decoded role set
func (c *Claims) Roles() []UserRole {
	return c.UserRoles
}

// HasRole checks if the claims carry a specific role
func (c *Claims) HasRole(role UserRole) bool {
	for _, r := range c.UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time, zero when the claim is absent
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// IssuedAt returns the issued-at time, zero when the claim is absent
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// validate enforces the decode-boundary contract: a token without a subject,
// expiry, or at least one role is treated as malformed rather than letting
// callers optional-chain through a partial payload.
func (c *Claims) validate() error {
	if c.RegisteredClaims.Subject == "" {
		return ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"missing": "sub",
		})
	}

	if c.RegisteredClaims.ExpiresAt == nil {
		return ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"missing": "exp",
		})
	}

	if len(c.UserRoles) == 0 {
		return ErrNoRoles
	}

	return nil
}
