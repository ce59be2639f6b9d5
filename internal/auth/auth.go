package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auth_gateway/internal/lib/autherr"
	"auth_gateway/internal/lib/jwt"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/lib/password"
	"auth_gateway/internal/models"
	"auth_gateway/internal/storage"
)

var (
	ErrSelfBan = errors.New("admins cannot ban themselves")

	// ErrSessionNotOpened means the account was stored but no session could
	// be written; the caller should log in instead of signing up again.
	ErrSessionNotOpened = errors.New("account created, log in to start a session")
)

type Auth struct {
	log      *slog.Logger
	users    UserStore
	sessions SessionStore
	tokens   *jwt.Manager
	notifier Notifier
	sockets  Disconnector

	resetCodeTTL  time.Duration
	resetAttempts int

	now func() time.Time
}

type UserStore interface {
	SaveUser(ctx context.Context, username, email, passHash, role string) (int64, error)
	UserByLogin(ctx context.Context, login string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UpdatePassword(ctx context.Context, id int64, passHash string) error
	SetBanStatus(ctx context.Context, id int64, banned bool, reason string) error
	SetResetCode(ctx context.Context, id int64, codeHash string, expiresAt time.Time) error
	ConsumeResetCode(ctx context.Context, id int64, codeHash string, now time.Time) error
	ClearResetCode(ctx context.Context, id int64) error
}

type SessionStore interface {
	SetRefresh(ctx context.Context, userID int64, token string, ttl time.Duration) error
	GetRefresh(ctx context.Context, userID int64) (string, error)
	SwapRefresh(ctx context.Context, userID int64, oldToken, newToken string, ttl time.Duration) error
	DeleteRefresh(ctx context.Context, userID int64) error
	BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	SetResetToken(ctx context.Context, userID int64, token string, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, userID int64, token string) error
	CountResetAttempt(ctx context.Context, userID int64, window time.Duration) (int64, error)
	ClearResetAttempts(ctx context.Context, userID int64) error
}

type Notifier interface {
	Welcome(u models.User)
	ResetCode(u models.User, code string, ttl time.Duration)
	Banned(u models.User, reason string)
	Unbanned(u models.User)
}

// Disconnector closes the live real-time connections of a user.
type Disconnector interface {
	DisconnectUser(userID int64) int
}

type Options struct {
	ResetCodeTTL  time.Duration
	ResetAttempts int
}

// New builds the auth service. sockets may be nil when no real-time
// transport is running.
func New(
	log *slog.Logger,
	users UserStore,
	sessions SessionStore,
	tokens *jwt.Manager,
	notifier Notifier,
	sockets Disconnector,
	opts Options,
) *Auth {
	return &Auth{
		log:           log,
		users:         users,
		sessions:      sessions,
		tokens:        tokens,
		notifier:      notifier,
		sockets:       sockets,
		resetCodeTTL:  opts.ResetCodeTTL,
		resetAttempts: opts.ResetAttempts,
		now:           time.Now,
	}
}

// Register creates an account and opens its first session. When only the
// session fails, the stored user is returned with an error wrapping
// ErrSessionNotOpened.
func (a *Auth) Register(ctx context.Context, username, email, pass string) (models.User, models.TokenPair, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := password.Hash(pass)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return models.User{}, models.TokenPair{}, autherr.New(autherr.KindValidation, op, err)
		}

		log.Error("failed to hash password", sl.Err(err))
		return models.User{}, models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	id, err := a.users.SaveUser(ctx, username, email, passHash, models.RoleUser)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Info("duplicate account")
			return models.User{}, models.TokenPair{}, autherr.New(autherr.KindDuplicateAccount, op, err)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	user, err := a.users.UserByID(ctx, id)
	if err != nil {
		log.Error("failed to load saved user", sl.Err(err), slog.Int64("uid", id))
		return models.User{}, models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	a.notifier.Welcome(user)

	log.Info("user registered", slog.Int64("uid", id))

	pair, err := a.openSession(ctx, id)
	if err != nil {
		log.Error("failed to open session", sl.Err(err), slog.Int64("uid", id))
		return user, models.TokenPair{}, autherr.New(
			autherr.KindOf(err), op, fmt.Errorf("%w: %w", ErrSessionNotOpened, err),
		)
	}

	return user, pair, nil
}

// Login checks credentials and opens a new session, replacing any previous
// one for the same user. Unknown user and wrong password are reported alike.
func (a *Auth) Login(ctx context.Context, login, pass string) (models.User, models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.users.UserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			password.VerifyDummy(pass)
			log.Info("invalid credentials")
			return models.User{}, models.TokenPair{}, autherr.New(autherr.KindInvalidCredentials, op, nil)
		}

		log.Error("failed to get user", sl.Err(err))
		return models.User{}, models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	if !password.Verify(pass, user.PassHash) {
		log.Info("invalid credentials", slog.Int64("uid", user.ID))
		return models.User{}, models.TokenPair{}, autherr.New(autherr.KindInvalidCredentials, op, nil)
	}

	if user.Banned {
		log.Info("banned user tried to log in", slog.Int64("uid", user.ID))
		return models.User{}, models.TokenPair{}, autherr.New(autherr.KindUserBanned, op, nil)
	}

	pair, err := a.openSession(ctx, user.ID)
	if err != nil {
		log.Error("failed to open session", sl.Err(err), slog.Int64("uid", user.ID))
		return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("uid", user.ID))

	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The stored token is
// replaced with compare-and-swap, so a refresh token is honored at most once
// even under concurrent use.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return models.TokenPair{}, autherr.New(autherr.KindValidation, op, errors.New("missing refresh token"))
	}

	claims, err := a.tokens.ParseRefresh(refreshToken)
	if err != nil {
		log.Info("refresh token rejected", sl.Err(err))
		return models.TokenPair{}, autherr.New(autherr.KindOf(err), op, err)
	}

	uid, err := claims.UserID()
	if err != nil {
		return models.TokenPair{}, autherr.New(autherr.KindTokenInvalid, op, err)
	}

	log = log.With(slog.Int64("uid", uid))

	stored, err := a.sessions.GetRefresh(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshNotFound) {
			log.Info("no live session for refresh token")
			return models.TokenPair{}, autherr.New(autherr.KindTokenInvalid, op, err)
		}

		log.Error("failed to read session", sl.Err(err))
		return models.TokenPair{}, autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	if stored != refreshToken {
		log.Warn("refresh token does not match live session")
		return models.TokenPair{}, autherr.New(autherr.KindTokenInvalid, op, storage.ErrRefreshMismatch)
	}

	user, err := a.users.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.TokenPair{}, autherr.New(autherr.KindNotFound, op, err)
		}

		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	if user.Banned {
		return models.TokenPair{}, autherr.New(autherr.KindUserBanned, op, nil)
	}

	pair, err := a.tokens.Issue(uid)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	err = a.sessions.SwapRefresh(ctx, uid, refreshToken, pair.RefreshToken, a.tokens.RefreshTTL())
	if err != nil {
		if errors.Is(err, storage.ErrRefreshMismatch) || errors.Is(err, storage.ErrRefreshNotFound) {
			log.Warn("lost refresh rotation race")
			return models.TokenPair{}, autherr.New(autherr.KindTokenInvalid, op, err)
		}

		log.Error("failed to rotate session", sl.Err(err))
		return models.TokenPair{}, autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	log.Info("tokens refreshed")

	return pair, nil
}

// Logout ends the caller's session: the stored refresh token is deleted and
// the access token is blacklisted for the rest of its natural lifetime.
// Either token may be missing or expired; with neither identifiable it is a
// no-op.
func (a *Auth) Logout(ctx context.Context, accessToken, refreshToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	var (
		uid   int64
		found bool
	)

	if accessToken != "" {
		claims, err := a.tokens.ParseAccess(accessToken)
		if claims != nil && (err == nil || errors.Is(err, autherr.ErrTokenExpired)) {
			if id, idErr := claims.UserID(); idErr == nil {
				uid, found = id, true
			}

			if err := a.sessions.BlacklistAccess(ctx, accessToken, claims.Remaining(a.now())); err != nil {
				log.Error("failed to blacklist access token", sl.Err(err))
				return autherr.New(autherr.KindStoreUnavailable, op, err)
			}
		}
	}

	if !found && refreshToken != "" {
		claims, err := a.tokens.ParseRefresh(refreshToken)
		if claims != nil && (err == nil || errors.Is(err, autherr.ErrTokenExpired)) {
			if id, idErr := claims.UserID(); idErr == nil {
				uid, found = id, true
			}
		}
	}

	if !found {
		log.Debug("logout without identifiable session")
		return nil
	}

	if err := a.sessions.DeleteRefresh(ctx, uid); err != nil {
		log.Error("failed to delete session", sl.Err(err), slog.Int64("uid", uid))
		return autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	log.Info("user logged out", slog.Int64("uid", uid))

	return nil
}

// SetBanStatus bans or unbans a user on behalf of admin. A ban closes the
// user's live connections. Session entries are left to expire: the banned
// flag is checked on every refresh and gateway check.
func (a *Auth) SetBanStatus(ctx context.Context, admin models.Identity, userID int64, banned bool, reason string) error {
	const op = "auth.SetBanStatus"

	log := a.log.With(
		slog.String("op", op),
		slog.Int64("uid", userID),
		slog.Int64("admin_id", admin.UserID),
		slog.Bool("banned", banned),
	)

	if banned && admin.UserID == userID {
		return autherr.New(autherr.KindValidation, op, ErrSelfBan)
	}

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return autherr.New(autherr.KindNotFound, op, err)
		}

		log.Error("failed to get user", sl.Err(err))
		return autherr.New(autherr.KindInternal, op, err)
	}

	if err := a.users.SetBanStatus(ctx, userID, banned, reason); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return autherr.New(autherr.KindNotFound, op, err)
		}

		log.Error("failed to update ban status", sl.Err(err))
		return autherr.New(autherr.KindInternal, op, err)
	}

	if !banned {
		a.notifier.Unbanned(user)
		log.Info("user unbanned")
		return nil
	}

	if a.sockets != nil {
		n := a.sockets.DisconnectUser(userID)
		log.Debug("closed live connections", slog.Int("count", n))
	}

	a.notifier.Banned(user, reason)

	log.Info("user banned")

	return nil
}

// openSession issues a pair and stores its refresh token. Nothing is returned
// unless the session entry was written.
func (a *Auth) openSession(ctx context.Context, uid int64) (models.TokenPair, error) {
	const op = "auth.openSession"

	pair, err := a.tokens.Issue(uid)
	if err != nil {
		return models.TokenPair{}, autherr.New(autherr.KindInternal, op, err)
	}

	if err := a.sessions.SetRefresh(ctx, uid, pair.RefreshToken, a.tokens.RefreshTTL()); err != nil {
		return models.TokenPair{}, autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	return pair, nil
}
