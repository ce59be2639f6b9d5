package signup

import (
	"errors"
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

type Request struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
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
		const op = "handlers.signup.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		user, pair, err := authService.Register(r.Context(), req.Username, req.Email, req.Password)
		if errors.Is(err, auth.ErrSessionNotOpened) {
			log.Error("account stored without session", sl.Err(err), slog.Int64("uid", user.ID))

			status := http.StatusInternalServerError
			if autherr.KindOf(err) == autherr.KindStoreUnavailable {
				status = http.StatusServiceUnavailable
			}

			render.Status(r, status)
			render.JSON(w, r, resp.Error(auth.ErrSessionNotOpened.Error()))

			return
		}
		if err != nil {
			switch autherr.KindOf(err) {
			case autherr.KindValidation:
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("invalid request"))
			case autherr.KindDuplicateAccount:
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("username or email already taken"))
			default:
				log.Error("failed to register user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		jar.SetSession(w, pair)

		log.Info("user signed up", slog.Int64("uid", user.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     user.Identity(),
		})
	}
}
