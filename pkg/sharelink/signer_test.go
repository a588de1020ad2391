package sharelink

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", time.Hour)

	token, expiresAt, err := signer.Issue("plan-123")
	require.NoError(t, err)

	id, exp, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "plan-123", id)
	assert.Equal(t, expiresAt, exp)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Issue("plan-123")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forged, _, err := signer.Issue("plan-999")
	require.NoError(t, err)
	swapped := strings.Split(forged, ".")[0] + "." + parts[1] + "." + parts[2]

	_, _, err = signer.Verify(swapped)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = NewSigner("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = signer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRejectsExpiredToken(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issuedAt }

	token, _, err := signer.Issue("plan-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, _, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSigner("", time.Hour).Issue("plan-1")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
