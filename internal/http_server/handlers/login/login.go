package login

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/http_server/cookies"
	"auth_gateway/internal/lib/api/request"
	resp "auth_gateway/internal/lib/api/response"
	"auth_gateway/internal/lib/autherr"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
)

// Request.Login is a username or an email.
type Request struct {
	Login    string `json:"login" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type Response struct {
	resp.Response
	User models.Identity `json:"user"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	jar cookies.Jar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		user, pair, err := authService.Login(r.Context(), req.Login, req.Password)
		if err != nil {
			switch autherr.KindOf(err) {
			case autherr.KindInvalidCredentials:
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid credentials"))
			case autherr.KindUserBanned:
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("account is banned"))
			case autherr.KindStoreUnavailable:
				log.Error("session store unavailable", sl.Err(err))

				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error("service unavailable"))
			default:
				log.Error("failed to login user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		jar.SetSession(w, pair)

		log.Info("user logged in", slog.Int64("uid", user.ID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     user.Identity(),
		})
	}
}
