package auth

import (
	"context"
	"errors"
	"log/slog"

	"auth_gateway/internal/lib/autherr"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
	"auth_gateway/internal/storage"
)

type ctxKey struct{}

// Authenticate is the single check shared by HTTP requests and real-time
// handshakes. The order is fixed: presence, blacklist, signature and expiry,
// user lookup, ban flag. A session store failure rejects the caller.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (models.Identity, error) {
	const op = "auth.Authenticate"

	log := a.log.With(slog.String("op", op))

	if accessToken == "" {
		return models.Identity{}, autherr.New(autherr.KindUnauthenticated, op, nil)
	}

	revoked, err := a.sessions.IsBlacklisted(ctx, accessToken)
	if err != nil {
		log.Error("blacklist lookup failed", sl.Err(err))
		return models.Identity{}, autherr.New(autherr.KindStoreUnavailable, op, err)
	}
	if revoked {
		return models.Identity{}, autherr.New(autherr.KindTokenRevoked, op, nil)
	}

	claims, err := a.tokens.ParseAccess(accessToken)
	if err != nil {
		return models.Identity{}, autherr.New(autherr.KindOf(err), op, err)
	}

	uid, err := claims.UserID()
	if err != nil {
		return models.Identity{}, autherr.New(autherr.KindTokenInvalid, op, err)
	}

	user, err := a.users.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Identity{}, autherr.New(autherr.KindNotFound, op, err)
		}

		log.Error("failed to get user", sl.Err(err), slog.Int64("uid", uid))
		return models.Identity{}, autherr.New(autherr.KindInternal, op, err)
	}

	if user.Banned {
		return models.Identity{}, autherr.New(autherr.KindUserBanned, op, nil)
	}

	return user.Identity(), nil
}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity attached by the gateway.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(models.Identity)
	return id, ok
}
