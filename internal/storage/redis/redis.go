package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"auth_gateway/internal/storage"
)

const (
	refreshPrefix       = "refresh:"
	blacklistPrefix     = "blacklist:"
	resetPrefix         = "reset:"
	resetAttemptsPrefix = "reset_attempts:"

	blacklistMarker = "1"
)

// compareAndSwap replaces KEYS[1] with ARGV[2] only while it still holds ARGV[1].
// The remaining TTL is replaced by ARGV[3] milliseconds.
var compareAndSwap = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

// countAttempt increments KEYS[1] and sets its TTL on the first hit.
var countAttempt = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type Options struct {
	Addr      string
	Password  string
	DB        int
	OpTimeout time.Duration
}

// SessionStore keeps the revocation state that signed tokens cannot carry:
// the single live refresh token per user, the access-token blacklist and
// pending password-reset tokens. Every write carries a TTL.
type SessionStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

func New(ctx context.Context, opts Options) (*SessionStore, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(ClientOptions(opts))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(client, opts.OpTimeout), nil
}

// ClientOptions builds the go-redis options used by New. Context deadlines
// bound socket I/O, so a caller's timeout holds even when the server stalls.
func ClientOptions(opts Options) *redis.Options {
	return &redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		MaxRetries:            3,
		DialTimeout:           5 * time.Second,
		ReadTimeout:           3 * time.Second,
		WriteTimeout:          3 * time.Second,
		ContextTimeoutEnabled: true,
		PoolSize:              10,
		MinIdleConns:          2,
	}
}

// NewWithClient wraps an existing client. A zero opTimeout disables the
// per-operation deadline.
func NewWithClient(client redis.UniversalClient, opTimeout time.Duration) *SessionStore {
	return &SessionStore{
		client:    client,
		opTimeout: opTimeout,
	}
}

func (s *SessionStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, storage.ErrCacheUnavailable, err)
}

func refreshKey(userID int64) string {
	return refreshPrefix + strconv.FormatInt(userID, 10)
}

func resetKey(userID int64) string {
	return resetPrefix + strconv.FormatInt(userID, 10)
}

func resetAttemptsKey(userID int64) string {
	return resetAttemptsPrefix + strconv.FormatInt(userID, 10)
}

// blacklistKey hashes the token so key size stays fixed; the mapping is
// still one entry per raw token.
func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// SetRefresh stores token as the only valid refresh token for userID,
// overwriting any previous one.
func (s *SessionStore) SetRefresh(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	const op = "storage.redis.SetRefresh"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

func (s *SessionStore) GetRefresh(ctx context.Context, userID int64) (string, error) {
	const op = "storage.redis.GetRefresh"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	token, err := s.client.Get(ctx, refreshKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrRefreshNotFound)
		}
		return "", unavailable(op, err)
	}

	return token, nil
}

// SwapRefresh atomically replaces oldToken with newToken. Of several
// concurrent callers presenting the same oldToken exactly one succeeds;
// the rest get ErrRefreshMismatch.
func (s *SessionStore) SwapRefresh(ctx context.Context, userID int64, oldToken, newToken string, ttl time.Duration) error {
	const op = "storage.redis.SwapRefresh"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := compareAndSwap.Run(ctx, s.client, []string{refreshKey(userID)}, oldToken, newToken, ttl.Milliseconds()).Int()
	if err != nil {
		return unavailable(op, err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshNotFound)
	default:
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshMismatch)
	}
}

// DeleteRefresh is idempotent.
func (s *SessionStore) DeleteRefresh(ctx context.Context, userID int64) error {
	const op = "storage.redis.DeleteRefresh"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

// BlacklistAccess revokes an access token for ttl, normally the token's
// remaining lifetime. A non-positive ttl is a no-op: the token is already dead.
func (s *SessionStore) BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error {
	const op = "storage.redis.BlacklistAccess"

	if ttl <= 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, blacklistKey(token), blacklistMarker, ttl).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

func (s *SessionStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	const op = "storage.redis.IsBlacklisted"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, unavailable(op, err)
	}

	return n > 0, nil
}

func (s *SessionStore) SetResetToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	const op = "storage.redis.SetResetToken"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, resetKey(userID), token, ttl).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

func (s *SessionStore) GetResetToken(ctx context.Context, userID int64) (string, error) {
	const op = "storage.redis.GetResetToken"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	token, err := s.client.Get(ctx, resetKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrResetNotFound)
		}
		return "", unavailable(op, err)
	}

	return token, nil
}

// ConsumeResetToken deletes the stored reset token if and only if it equals
// token. A second call with the same token fails with ErrResetNotFound.
func (s *SessionStore) ConsumeResetToken(ctx context.Context, userID int64, token string) error {
	const op = "storage.redis.ConsumeResetToken"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := compareAndDelete.Run(ctx, s.client, []string{resetKey(userID)}, token).Int()
	if err != nil {
		return unavailable(op, err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%s: %w", op, storage.ErrResetNotFound)
	default:
		return fmt.Errorf("%s: %w", op, storage.ErrResetMismatch)
	}
}

func (s *SessionStore) DeleteResetToken(ctx context.Context, userID int64) error {
	const op = "storage.redis.DeleteResetToken"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, resetKey(userID)).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

// CountResetAttempt records one code verification attempt for userID and
// returns the number of attempts inside the current window.
func (s *SessionStore) CountResetAttempt(ctx context.Context, userID int64, window time.Duration) (int64, error) {
	const op = "storage.redis.CountResetAttempt"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := countAttempt.Run(ctx, s.client, []string{resetAttemptsKey(userID)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable(op, err)
	}

	return n, nil
}

func (s *SessionStore) ClearResetAttempts(ctx context.Context, userID int64) error {
	const op = "storage.redis.ClearResetAttempts"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, resetAttemptsKey(userID)).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	const op = "storage.redis.Ping"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(op, err)
	}

	return nil
}

// Close closes the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
