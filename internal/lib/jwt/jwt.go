package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"auth_gateway/internal/lib/autherr"
	"auth_gateway/internal/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeReset   = "reset"
)

type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Remaining is the time left until natural expiry, never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}

	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}

	return 0
}

type Config struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	ResetSecret   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
}

// Manager signs and verifies the three token types. Each type has its own
// secret and lifetime. Verification is purely cryptographic; revocation is
// layered on top by the caller.
type Manager struct {
	issuer  string
	access  []byte
	refresh []byte
	reset   []byte

	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration

	now func() time.Time
}

func New(cfg Config) (*Manager, error) {
	const op = "jwt.New"

	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" || cfg.ResetSecret == "" {
		return nil, fmt.Errorf("%s: token secrets must not be empty", op)
	}
	if cfg.AccessSecret == cfg.RefreshSecret || cfg.AccessSecret == cfg.ResetSecret || cfg.RefreshSecret == cfg.ResetSecret {
		return nil, fmt.Errorf("%s: token secrets must be distinct", op)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("%s: token ttl must be positive", op)
	}

	return &Manager{
		issuer:     cfg.Issuer,
		access:     []byte(cfg.AccessSecret),
		refresh:    []byte(cfg.RefreshSecret),
		reset:      []byte(cfg.ResetSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.ResetTTL,
		now:        time.Now,
	}, nil
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }
func (m *Manager) ResetTTL() time.Duration   { return m.resetTTL }

// Issue signs a new access/refresh pair for userID.
func (m *Manager) Issue(userID int64) (models.TokenPair, error) {
	const op = "jwt.Manager.Issue"

	now := m.now()

	access, accessExp, err := m.sign(userID, TypeAccess, m.access, m.accessTTL, now)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, refreshExp, err := m.sign(userID, TypeRefresh, m.refresh, m.refreshTTL, now)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueReset signs the temporary token handed out after a verified reset code.
func (m *Manager) IssueReset(userID int64) (string, error) {
	const op = "jwt.Manager.IssueReset"

	token, _, err := m.sign(userID, TypeReset, m.reset, m.resetTTL, m.now())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (m *Manager) ParseAccess(token string) (*Claims, error) {
	return m.verify(token, m.access, TypeAccess)
}

func (m *Manager) ParseRefresh(token string) (*Claims, error) {
	return m.verify(token, m.refresh, TypeRefresh)
}

func (m *Manager) ParseReset(token string) (*Claims, error) {
	return m.verify(token, m.reset, TypeReset)
}

func (m *Manager) sign(userID int64, typ string, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)

	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp, nil
}

// verify checks signature, issuer, expiry and type. On an expired but
// otherwise authentic token it returns the claims together with a
// TokenExpired error so callers can still read the subject.
func (m *Manager) verify(tokenStr string, secret []byte, typ string) (*Claims, error) {
	const op = "jwt.Manager.verify"

	if tokenStr == "" {
		return nil, autherr.New(autherr.KindTokenInvalid, op, errors.New("empty token"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if claims.Type != typ {
			return nil, autherr.New(autherr.KindTokenInvalid, op, errors.New("unexpected token type"))
		}
		return claims, autherr.New(autherr.KindTokenExpired, op, err)
	default:
		return nil, autherr.New(autherr.KindTokenInvalid, op, err)
	}

	if claims.Type != typ {
		return nil, autherr.New(autherr.KindTokenInvalid, op, errors.New("unexpected token type"))
	}
	if _, err := claims.UserID(); err != nil {
		return nil, autherr.New(autherr.KindTokenInvalid, op, fmt.Errorf("bad subject: %w", err))
	}

	return claims, nil
}
