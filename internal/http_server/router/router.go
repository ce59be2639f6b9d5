package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/config"
	"auth_gateway/internal/http_server/cookies"
	"auth_gateway/internal/http_server/handlers/ban"
	"auth_gateway/internal/http_server/handlers/forgotpassword"
	"auth_gateway/internal/http_server/handlers/health"
	"auth_gateway/internal/http_server/handlers/login"
	"auth_gateway/internal/http_server/handlers/logout"
	"auth_gateway/internal/http_server/handlers/me"
	"auth_gateway/internal/http_server/handlers/refresh"
	"auth_gateway/internal/http_server/handlers/resetpassword"
	"auth_gateway/internal/http_server/handlers/signup"
	"auth_gateway/internal/http_server/handlers/verifycode"
	"auth_gateway/internal/middleware/authn"
	"auth_gateway/internal/middleware/cors"
	mwLogger "auth_gateway/internal/middleware/logger"
	rateLimit "auth_gateway/internal/middleware/ratelimit"
)

type Deps struct {
	Log         *slog.Logger
	Auth        *auth.Auth
	Validate    *validator.Validate
	Cookies     cookies.Jar
	RateLimit   config.RateLimit
	CORSOrigins []string
	// Realtime serves GET /ws; nil leaves the route out.
	Realtime http.Handler
	Health   map[string]health.Pinger
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mwLogger.New(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(d.CORSOrigins))

	gateway := authn.New(d.Log, d.Auth)

	r.Get("/health", health.New(d.Log, d.Health))

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Signup(d.RateLimit)).
			Post("/signup", signup.New(d.Log, d.Validate, d.Auth, d.Cookies))
		r.With(rateLimit.Login(d.RateLimit)).
			Post("/login", login.New(d.Log, d.Validate, d.Auth, d.Cookies))
		r.With(rateLimit.Refresh(d.RateLimit)).
			Post("/refresh", refresh.New(d.Log, d.Auth, d.Cookies))
		r.With(rateLimit.Logout(d.RateLimit)).
			Post("/logout", logout.New(d.Log, d.Auth, d.Cookies))
		r.With(rateLimit.ForgotPassword(d.RateLimit)).
			Post("/forgot-password", forgotpassword.New(d.Log, d.Validate, d.Auth))
		r.With(rateLimit.VerifyCode(d.RateLimit)).
			Post("/verify-code", verifycode.New(d.Log, d.Validate, d.Auth, d.Cookies))
		r.With(rateLimit.ResetPassword(d.RateLimit)).
			Post("/reset-password", resetpassword.New(d.Log, d.Validate, d.Auth, d.Cookies))

		r.With(gateway).Get("/me", me.New())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(gateway)
		r.Use(authn.RequireAdmin)

		r.Post("/users/{id}/ban", ban.New(d.Log, d.Validate, d.Auth, true))
		r.Post("/users/{id}/unban", ban.New(d.Log, d.Validate, d.Auth, false))
	})

	if d.Realtime != nil {
		r.Get("/ws", d.Realtime.ServeHTTP)
	}

	return r
}
