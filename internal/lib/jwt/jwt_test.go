package jwt

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth_gateway/internal/lib/autherr"
)

func testConfig() Config {
	return Config{
		Issuer:        "auth-gateway-test",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTTL:      5 * time.Minute,
	}
}

func newManager(t *testing.T) *Manager {
	t.Helper()

	m, err := New(testConfig())
	require.NoError(t, err)

	return m
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.ResetSecret = ""
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.AccessTTL = 0
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestIssueAndParse(t *testing.T) {
	m := newManager(t)

	pair, err := m.Issue(42)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	access, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	uid, err := access.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)
	assert.Equal(t, "auth-gateway-test", access.Issuer)
	assert.Equal(t, TypeAccess, access.Type)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, refresh.Type)
}

func TestSuccessivePairsDiffer(t *testing.T) {
	m := newManager(t)

	first, err := m.Issue(1)
	require.NoError(t, err)
	second, err := m.Issue(1)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	m := newManager(t)

	pair, err := m.Issue(7)
	require.NoError(t, err)

	_, err = m.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)

	_, err = m.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)

	reset, err := m.IssueReset(7)
	require.NoError(t, err)
	_, err = m.ParseAccess(reset)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)

	claims, err := m.ParseReset(reset)
	require.NoError(t, err)
	assert.Equal(t, TypeReset, claims.Type)
}

func TestExpiredIsDistinguishableFromMalformed(t *testing.T) {
	m := newManager(t)

	pair, err := m.Issue(9)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	claims, err := m.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, autherr.ErrTokenExpired)
	require.NotNil(t, claims)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(9), uid)
	assert.Zero(t, claims.Remaining(m.now()))

	// Refresh lives longer than an hour.
	_, err = m.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTamperedAndForeignTokensAreInvalid(t *testing.T) {
	m := newManager(t)

	pair, err := m.Issue(3)
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	for _, tok := range []string{"", "garbage", "a.b.c", tampered} {
		_, err := m.ParseAccess(tok)
		assert.ErrorIs(t, err, autherr.ErrTokenInvalid, tok)
	}

	foreign := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		Type: TypeAccess,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "3",
			Issuer:    "auth-gateway-test",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := foreign.SignedString([]byte("someone-elses-secret"))
	require.NoError(t, err)

	_, err = m.ParseAccess(signed)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)
}

func TestExpiredForgedTokenIsInvalidNotExpired(t *testing.T) {
	m := newManager(t)

	forged := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		Type: TypeAccess,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "3",
			Issuer:    "auth-gateway-test",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := forged.SignedString([]byte("wrong"))
	require.NoError(t, err)

	claims, err := m.ParseAccess(signed)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)
}
