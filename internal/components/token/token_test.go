package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-bytes-long-xxxxxx"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *Issuer {
	t.Helper()
	i, err := NewIssuer([]byte(testSecret), "huddle", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return i
}

func TestNewIssuer_RejectsShortSecret(t *testing.T) {
	_, err := NewIssuer([]byte("short"), "", time.Hour)
	assert.Error(t, err)

	_, err = NewIssuer([]byte(testSecret), "", 0)
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, clock)

	raw, exp, err := i.Issue("user-1", "moderator")
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), exp)

	claims, err := i.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "moderator", claims.Role)
	assert.Equal(t, "huddle", claims.Issuer)
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, clock)

	raw, _, err := i.Issue("user-1", "user")
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = i.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestVerify_Malformed(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	i := newTestIssuer(t, clock)

	good, _, err := i.Issue("user-1", "user")
	require.NoError(t, err)

	otherSecret := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iss": "huddle",
		"exp": clock.t.Add(time.Hour).Unix(),
	})
	forged, err := otherSecret.SignedString([]byte(strings.Repeat("z", 32)))
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": "huddle"})
	noExpRaw, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "huddle",
		"exp": clock.t.Add(time.Hour).Unix(),
	})
	noSubRaw, err := noSub.SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iss": "someone-else",
		"exp": clock.t.Add(time.Hour).Unix(),
	})
	wrongIssuerRaw, err := wrongIssuer.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"empty":        "",
		"truncated":    good[:len(good)-5],
		"wrong secret": forged,
		"no expiry":    noExpRaw,
		"no subject":   noSubRaw,
		"wrong issuer": wrongIssuerRaw,
		"alg none":     "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ1c2VyLTEifQ.",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := i.Verify(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
