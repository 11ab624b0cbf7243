// Package token implements the signed gate credential: a short-lived,
// tamper-evident string bound to a subject identity. The canonical wire
// format is `subject_id|issued_at|hex_hmac_sha256`; a compact variant
// `subject_id|truncated_base64url_hmac` is available for denser QR payloads
// at the cost of signature strength.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedToken means the token did not parse into the expected fields.
	ErrMalformedToken = errors.New("malformed token")
	// ErrBadSignature means the HMAC did not match under constant-time comparison.
	ErrBadSignature = errors.New("bad token signature")
	// ErrTokenExpired means the embedded timestamp is outside the validity window.
	ErrTokenExpired = errors.New("token expired")
)

const (
	// DefaultValidity bounds the age of a time-boxed token.
	DefaultValidity = 300 * time.Second
	// DefaultClockSkew tolerates issuers slightly ahead of the verifier.
	DefaultClockSkew = 30 * time.Second
	// MinCompactSigChars is the smallest accepted truncation for the compact
	// variant: 12 base64url characters cover 9 bytes of signature.
	MinCompactSigChars = 12
	// MaxCompactSigChars is the longest usable truncation: a base64url
	// SHA-256 digest has 43 significant characters before padding.
	MaxCompactSigChars = 43

	fieldSep = "|"
)

// Clock supplies the current time; injected so expiry behavior is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Config controls codec behavior. Secret is required and must be treated as
// immutable for the process lifetime.
type Config struct {
	Secret    []byte
	Validity  time.Duration
	ClockSkew time.Duration
	// Compact switches to the timestamp-free truncated variant.
	Compact bool
	// SigChars is the truncation length for compact tokens.
	SigChars int
	Clock    Clock
}

// Codec issues and verifies gate credentials. It is pure and safe for
// concurrent use; it never touches the identity store.
type Codec struct {
	secret   []byte
	validity time.Duration
	skew     time.Duration
	compact  bool
	sigChars int
	clock    Clock
}

// NewCodec validates the configuration and builds a codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: secret key is required")
	}
	if cfg.Compact && cfg.SigChars < MinCompactSigChars {
		return nil, fmt.Errorf("token: compact signature length %d below minimum %d", cfg.SigChars, MinCompactSigChars)
	}
	if cfg.Compact && cfg.SigChars > MaxCompactSigChars {
		return nil, fmt.Errorf("token: compact signature length %d above maximum %d", cfg.SigChars, MaxCompactSigChars)
	}
	c := &Codec{
		secret:   cfg.Secret,
		validity: cfg.Validity,
		skew:     cfg.ClockSkew,
		compact:  cfg.Compact,
		sigChars: cfg.SigChars,
		clock:    cfg.Clock,
	}
	if c.validity <= 0 {
		c.validity = DefaultValidity
	}
	if c.skew <= 0 {
		c.skew = DefaultClockSkew
	}
	if c.clock == nil {
		c.clock = SystemClock()
	}
	return c, nil
}

// Validity returns the configured validity window.
func (c *Codec) Validity() time.Duration { return c.validity }

// Issue builds a signed credential for the subject. A new token must be
// generated per presentation window; tokens carry no mutable state.
func (c *Codec) Issue(subjectID int64) string {
	if c.compact {
		message := strconv.FormatInt(subjectID, 10)
		return message + fieldSep + c.compactSignature(message)
	}
	issuedAt := c.clock.Now().Unix()
	message := strconv.FormatInt(subjectID, 10) + fieldSep + strconv.FormatInt(issuedAt, 10)
	return message + fieldSep + c.hexSignature(message)
}

// Verify checks structure, signature and (in the canonical variant) expiry,
// returning the asserted subject id. Out-of-range subject ids are
// syntactically valid here; identity resolution rejects them downstream.
func (c *Codec) Verify(tok string) (int64, error) {
	parts := strings.Split(tok, fieldSep)
	if c.compact {
		return c.verifyCompact(parts)
	}
	if len(parts) != 3 {
		return 0, ErrMalformedToken
	}

	subjectID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, ErrMalformedToken
	}
	issuedAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, ErrMalformedToken
	}

	age := c.clock.Now().Unix() - issuedAt
	if age > int64(c.validity/time.Second) || -age > int64(c.skew/time.Second) {
		return 0, ErrTokenExpired
	}

	message := parts[0] + fieldSep + parts[1]
	if !hmac.Equal([]byte(c.hexSignature(message)), []byte(parts[2])) {
		return 0, ErrBadSignature
	}
	return subjectID, nil
}

func (c *Codec) verifyCompact(parts []string) (int64, error) {
	if len(parts) != 2 {
		return 0, ErrMalformedToken
	}
	subjectID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, ErrMalformedToken
	}
	// The expected signature is truncated to the configured length, never to
	// the length the caller supplied.
	if !hmac.Equal([]byte(c.compactSignature(parts[0])), []byte(parts[1])) {
		return 0, ErrBadSignature
	}
	return subjectID, nil
}

func (c *Codec) hexSignature(message string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Codec) compactSignature(message string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(message))
	encoded := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return encoded[:c.sigChars]
}
