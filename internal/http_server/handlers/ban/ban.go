package ban

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"auth_gateway/internal/auth"
	resp "auth_gateway/internal/lib/api/response"
	"auth_gateway/internal/lib/autherr"
	sl "auth_gateway/internal/lib/logger"
)

type Request struct {
	Reason string `json:"reason" validate:"max=500"`
}

// New serves both ban and unban; banned selects which. The body is optional.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	banned bool,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ban.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		admin, ok := auth.IdentityFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authentication required"))
			return
		}

		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || userID <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid user id"))
			return
		}

		var req Request
		if r.ContentLength != 0 {
			if err := render.DecodeJSON(r.Body, &req); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("failed to decode request"))
				return
			}
			if err := validate.Struct(req); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("reason is too long"))
				return
			}
		}

		err = authService.SetBanStatus(r.Context(), admin, userID, banned, req.Reason)
		if err != nil {
			switch autherr.KindOf(err) {
			case autherr.KindValidation:
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(auth.ErrSelfBan.Error()))
			case autherr.KindNotFound:
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			default:
				log.Error("failed to change ban status", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		render.JSON(w, r, resp.OK())
	}
}
