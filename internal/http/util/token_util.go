package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

const (
	expiryLen    = 4
	nonceLen     = 8
	signatureLen = 16
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("tracking secret is not configured")
)

// TokenSigner issues short-lived HMAC tokens that bind a capture page to the
// short code it was rendered for.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner returns a signer. An empty secret disables signing.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Enabled reports whether a secret is configured.
func (s *TokenSigner) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Issue mints a token for the provided short code.
func (s *TokenSigner) Issue(code string) (string, error) {
	if !s.Enabled() {
		return "", ErrMissingSecret
	}

	payload := make([]byte, expiryLen+nonceLen)
	binary.BigEndian.PutUint32(payload[:expiryLen], uint32(s.now().Add(s.ttl).Unix()))
	if _, err := rand.Read(payload[expiryLen:]); err != nil {
		return "", err
	}

	signature := s.sign(code, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(signature[:signatureLen]), nil
}

// Validate checks signature integrity and TTL of the token.
func (s *TokenSigner) Validate(code, token string) error {
	if !s.Enabled() {
		return ErrMissingSecret
	}

	payloadEnc, sigEnc, ok := strings.Cut(token, ".")
	if !ok {
		return ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadEnc)
	if err != nil || len(payload) != expiryLen+nonceLen {
		return ErrInvalidToken
	}
	sigProvided, err := base64.RawURLEncoding.DecodeString(sigEnc)
	if err != nil || len(sigProvided) != signatureLen {
		return ErrInvalidToken
	}

	expected := s.sign(code, payload)
	if !hmac.Equal(sigProvided, expected[:signatureLen]) {
		return ErrInvalidToken
	}

	expires := binary.BigEndian.Uint32(payload[:expiryLen])
	if s.now().Unix() > int64(expires) {
		return ErrInvalidToken
	}

	return nil
}

func (s *TokenSigner) sign(code string, payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(code))
	mac.Write([]byte("|"))
	mac.Write(payload)
	return mac.Sum(nil)
}
