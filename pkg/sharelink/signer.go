// Package sharelink issues and verifies HMAC-signed, expiring tokens that
// grant read access to a single resource.
package sharelink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("invalid share token")
	// ErrExpiredToken is returned for a correctly signed token past its expiry.
	ErrExpiredToken = errors.New("share token expired")
	// ErrMissingSecret means the signer cannot issue tokens.
	ErrMissingSecret = errors.New("share signing secret missing")
)

// Signer creates and validates share tokens of the form
// base64url(resourceID).expiryUnix.base64url(hmac).
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token for resourceID and its expiry.
func (s *Signer) Issue(resourceID string) (string, time.Time, error) {
	if strings.TrimSpace(resourceID) == "" {
		return "", time.Time{}, fmt.Errorf("resource id required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	encodedID := base64.RawURLEncoding.EncodeToString([]byte(resourceID))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{encodedID, ts, s.sign(encodedID, ts)}, ".")
	return token, expiresAt, nil
}

// Verify checks the signature and expiry and returns the resource id.
func (s *Signer) Verify(token string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, ErrInvalidToken
	}
	encodedID, ts, signature := parts[0], parts[1], parts[2]

	expected := s.sign(encodedID, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", time.Time{}, ErrInvalidToken
	}
	rawID, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	expiresAt := time.Unix(expUnix, 0).UTC()
	if s.now().After(expiresAt) {
		return "", expiresAt, ErrExpiredToken
	}
	return string(rawID), expiresAt, nil
}

func (s *Signer) sign(encodedID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedID + "|" + ts))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
