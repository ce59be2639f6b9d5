package rateLimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"auth_gateway/internal/config"
	resp "auth_gateway/internal/lib/api/response"
)

func Signup(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.Signup, cfg.Window)
}

func Login(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.Login, cfg.Window)
}

func Refresh(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.Refresh, cfg.Window)
}

func Logout(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.Logout, cfg.Window)
}

func ForgotPassword(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.ForgotPassword, cfg.Window)
}

func VerifyCode(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.VerifyCode, cfg.Window)
}

func ResetPassword(cfg config.RateLimit) func(http.Handler) http.Handler {
	return limitByIP(cfg.ResetPassword, cfg.Window)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, resp.Error("too many requests"))
}
