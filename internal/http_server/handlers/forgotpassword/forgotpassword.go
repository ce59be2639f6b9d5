package forgotpassword

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/lib/api/request"
	resp "auth_gateway/internal/lib/api/response"
	sl "auth_gateway/internal/lib/logger"
)

const sentMessage = "if an account with that email exists, a reset code has been sent"

type Request struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type Response struct {
	resp.Response
	Message string `json:"message"`
}

// New always answers 200 with the same body once the request is well formed,
// whether or not the account exists.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgotpassword.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		codeSent, err := authService.ForgotPassword(r.Context(), req.Email)
		if err != nil {
			log.Error("failed to start password reset", sl.Err(err))
		}

		log.Info("password reset requested", slog.Bool("code_sent", codeSent))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  sentMessage,
		})
	}
}
