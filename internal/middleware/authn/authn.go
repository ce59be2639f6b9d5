// Package authn is the HTTP side of the gateway: it reads the access token
// cookie, runs the shared identity check and attaches the result to the
// request context.
package authn

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/http_server/cookies"
	resp "auth_gateway/internal/lib/api/response"
	"auth_gateway/internal/lib/autherr"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Identity, error)
}

func New(log *slog.Logger, authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			id, err := authenticator.Authenticate(r.Context(), cookies.Read(r, cookies.Access))
			if err != nil {
				log.Info("request rejected", sl.Err(err))
				Reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		}

		return http.HandlerFunc(fn)
	}
}

// RequireAdmin must run after New.
func RequireAdmin(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authentication required"))
			return
		}

		if !id.IsAdmin() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, resp.Error("forbidden"))
			return
		}

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

// Status maps a gateway failure to its HTTP status and public message.
func Status(err error) (int, string) {
	switch autherr.KindOf(err) {
	case autherr.KindUnauthenticated:
		return http.StatusUnauthorized, "authentication required"
	case autherr.KindTokenExpired:
		return http.StatusUnauthorized, "token expired"
	case autherr.KindTokenInvalid:
		return http.StatusUnauthorized, "invalid token"
	case autherr.KindTokenRevoked:
		return http.StatusForbidden, "token revoked"
	case autherr.KindUserBanned:
		return http.StatusForbidden, "account is banned"
	case autherr.KindNotFound:
		return http.StatusNotFound, "user not found"
	case autherr.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func Reject(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := Status(err)

	render.Status(r, status)
	render.JSON(w, r, resp.Error(msg))
}
