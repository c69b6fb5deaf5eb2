package authclient

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// BearerScheme is the credential scheme used on the wire and in the persisted
// convenience copy of the token.
const BearerScheme = "Bearer"

// NormalizeToken strips a leading credential-scheme prefix, returning the
// canonical token representation. It is idempotent and tolerant of extra
// whitespace, so every write path can apply it unconditionally.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	for {
		rest, found := strings.CutPrefix(token, BearerScheme+" ")
		if !found {
			return token
		}
		token = strings.TrimSpace(rest)
	}
}

// PrefixToken returns the "Bearer "-prefixed representation of a token,
// normalizing first so the scheme never doubles up.
func PrefixToken(token string) string {
	canonical := NormalizeToken(token)
	if canonical == "" {
		return ""
	}
	return BearerScheme + " " + canonical
}

// Codec decodes token payloads without verifying the signature. Signature
// verification is the server's trust boundary; a successful local decode must
// never be treated as proof of authenticity.
type Codec struct {
	parser *jwt.Parser
	now    func() time.Time
}

// CodecOption customizes codec construction.
type CodecOption func(*Codec)

// WithCodecClock injects a custom clock (useful for tests).
func WithCodecClock(clock func() time.Time) CodecOption {
	return func(c *Codec) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewCodec creates a new token codec
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		parser: jwt.NewParser(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Decode parses the token payload into structured claims. The input may carry
// a scheme prefix. Missing required fields (subject, expiry, roles) fail with
// ErrTokenMalformed / ErrNoRoles.
func (c *Codec) Decode(token string) (*Claims, error) {
	canonical := NormalizeToken(token)
	if canonical == "" {
		return nil, ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"reason": "empty token",
		})
	}

	claims := &Claims{}
	if _, _, err := c.parser.ParseUnverified(canonical, claims); err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if err := claims.validate(); err != nil {
		return nil, err
	}

	return claims, nil
}

// IsExpired compares the token's expiry claim against the current time. It
// fails closed: malformed input is reported as expired.
func (c *Codec) IsExpired(token string) bool {
	claims, err := c.Decode(token)
	if err != nil {
		return true
	}
	return !claims.Expires().After(c.now())
}
