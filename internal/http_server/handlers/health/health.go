package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	resp "auth_gateway/internal/lib/api/response"
	sl "auth_gateway/internal/lib/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// New reports 503 when any dependency fails its ping.
func New(log *slog.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health.New"

		for name, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				log.Warn("dependency unhealthy",
					slog.String("op", op),
					slog.String("dependency", name),
					sl.Err(err),
				)

				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error(name+" unavailable"))

				return
			}
		}

		render.JSON(w, r, resp.OK())
	}
}
