package resetpassword

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
	Password string `json:"password" validate:"required,password"`
}

// New completes a reset using the resetToken cookie set by verify-code.
// The password is validated before the token is looked at.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	jar cookies.Jar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetpassword.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		err := authService.ResetPassword(r.Context(), cookies.Read(r, cookies.Reset), req.Password)
		if err != nil {
			switch autherr.KindOf(err) {
			case autherr.KindValidation:
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("password does not meet requirements"))
			case autherr.KindTokenInvalid, autherr.KindTokenExpired:
				jar.ClearReset(w)

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid or expired reset token"))
			case autherr.KindNotFound:
				jar.ClearReset(w)

				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			case autherr.KindStoreUnavailable:
				log.Error("session store unavailable", sl.Err(err))

				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error("service unavailable"))
			default:
				log.Error("failed to reset password", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		jar.ClearReset(w)
		jar.ClearSession(w)

		log.Info("password reset completed")

		render.JSON(w, r, resp.OK())
	}
}
