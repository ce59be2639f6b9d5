package refresh

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/http_server/cookies"
	resp "auth_gateway/internal/lib/api/response"
	"auth_gateway/internal/lib/autherr"
	sl "auth_gateway/internal/lib/logger"
)

// Request is only read when the refresh cookie is absent.
type Request struct {
	RefreshToken string `json:"refresh_token"`
}

func New(
	log *slog.Logger,
	authService *auth.Auth,
	jar cookies.Jar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := cookies.Read(r, cookies.Refresh)
		if token == "" && r.ContentLength != 0 {
			var req Request
			if err := render.DecodeJSON(r.Body, &req); err == nil {
				token = req.RefreshToken
			}
		}

		pair, err := authService.Refresh(r.Context(), token)
		if err != nil {
			log.Info("refresh rejected", sl.Err(err))

			switch autherr.KindOf(err) {
			case autherr.KindValidation:
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("missing refresh token"))
			case autherr.KindTokenExpired:
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("refresh token expired"))
			case autherr.KindTokenInvalid:
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid refresh token"))
			case autherr.KindUserBanned:
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("account is banned"))
			case autherr.KindNotFound:
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			case autherr.KindStoreUnavailable:
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error("service unavailable"))
			default:
				log.Error("failed to refresh tokens", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		jar.SetSession(w, pair)

		render.JSON(w, r, resp.OK())
	}
}
