package verifycode

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
)

type Request struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	jar cookies.Jar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verifycode.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		token, err := authService.VerifyResetCode(r.Context(), req.Email, req.Code)
		if err != nil {
			switch autherr.KindOf(err) {
			case autherr.KindValidation:
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(auth.ErrInvalidResetCode.Error()))
			case autherr.KindStoreUnavailable:
				log.Error("session store unavailable", sl.Err(err))

				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error("service unavailable"))
			default:
				log.Error("failed to verify reset code", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		jar.SetReset(w, token, authService.ResetTTL())

		render.JSON(w, r, resp.OK())
	}
}
