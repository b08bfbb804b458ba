package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "u-1", "Ada@Example.org", "Ada", RoleMember, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, time.Minute)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "ada@example.org", claims.Email)
	assert.Equal(t, RoleMember, claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "u-1", "ada@example.org", "Ada", RoleMember, time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("s3cret", "u-1", "ada@example.org", "Ada", RoleMember, -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noEmail, err := NewAccessToken("s3cret", "u-1", "", "Ada", RoleMember, time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", noEmail.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"email": "a@b"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
