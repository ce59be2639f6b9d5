package request

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	resp "auth_gateway/internal/lib/api/response"
	sl "auth_gateway/internal/lib/logger"
)

// Decode reads a JSON body into dst and validates it. On failure it has
// already written a 400 response and returns false.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Info("failed to decode request body", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("failed to decode request"))

		return false
	}

	if err := validate.Struct(dst); err != nil {
		log.Info("invalid request", sl.Err(err))

		var validateErr validator.ValidationErrors
		if !errors.As(err, &validateErr) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid request"))

			return false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.ValidationError(validateErr))

		return false
	}

	return true
}
