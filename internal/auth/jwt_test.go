package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := NewAuthenticator("s3cret", "hugg", "chat")
	tok, err := a.Sign("user-42", time.Hour)
	require.NoError(t, err)

	uid, err := a.Authenticate(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", uid)
}

func TestAuthenticator_Rejects(t *testing.T) {
	a := NewAuthenticator("s3cret", "", "")

	expired, err := a.Sign("u", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewAuthenticator("other", "", "").Sign("u", time.Hour)
	require.NoError(t, err)

	noSub, err := a.Sign("", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":     "",
		"garbage":   "a.b.c",
		"expired":   expired,
		"other key": otherKey,
		"no sub":    noSub,
		"no exp":    noExp,
		"hs512":     hs512,
	} {
		_, err := a.Authenticate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestAuthenticator_IssuerAndAudience(t *testing.T) {
	strict := NewAuthenticator("k", "hugg", "chat")

	wrongIss, err := NewAuthenticator("k", "someone", "chat").Sign("u", time.Hour)
	require.NoError(t, err)
	_, err = strict.Authenticate(wrongIss)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongAud, err := NewAuthenticator("k", "hugg", "billing").Sign("u", time.Hour)
	require.NoError(t, err)
	_, err = strict.Authenticate(wrongAud)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
