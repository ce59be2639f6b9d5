package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/http_server/cookies"
	resp "auth_gateway/internal/lib/api/response"
	sl "auth_gateway/internal/lib/logger"
)

// New ends the session named by the request cookies. Cookies are cleared
// even when revocation fails.
func New(
	log *slog.Logger,
	authService *auth.Auth,
	jar cookies.Jar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		err := authService.Logout(
			r.Context(),
			cookies.Read(r, cookies.Access),
			cookies.Read(r, cookies.Refresh),
		)

		jar.ClearSession(w)

		if err != nil {
			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, resp.OK())
	}
}
