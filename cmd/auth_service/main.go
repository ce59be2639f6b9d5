package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"auth_gateway/internal/auth"
	"auth_gateway/internal/config"
	"auth_gateway/internal/http_server/cookies"
	"auth_gateway/internal/http_server/handlers/health"
	"auth_gateway/internal/http_server/router"
	"auth_gateway/internal/lib/jwt"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/lib/notification"
	"auth_gateway/internal/lib/validate"
	"auth_gateway/internal/rabbitmq"
	"auth_gateway/internal/realtime"
	"auth_gateway/internal/storage/memory"
	"auth_gateway/internal/storage/postgres"
	"auth_gateway/internal/storage/redis"
)

func main() {
	cfg := config.MustLoad()

	log := sl.Setup(cfg.Env)

	log.Info("starting auth service", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("auth service stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("auth service stopped")
}

// run opens dependencies in order and closes them in reverse on return.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	tokens, err := jwt.New(jwt.Config{
		Issuer:        cfg.Tokens.Issuer,
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		ResetSecret:   cfg.Tokens.ResetSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		ResetTTL:      cfg.Tokens.ResetTTL,
	})
	if err != nil {
		return err
	}

	users, closeUsers, err := openUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeUsers()

	sessions, err := redis.New(ctx, redis.Options{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		OpTimeout: cfg.Redis.OpTimeout,
	})
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Error("failed to close redis", sl.Err(err))
		}
	}()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		return err
	}
	defer msgBroker.Close()

	notifier := notification.New(log, msgBroker, cfg.RabbitMQ.PublishTimeout)
	defer notifier.Wait()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	hub := realtime.NewHub(log)
	go hub.Run(hubCtx)

	authService := auth.New(log, users, sessions, tokens, notifier, hub, auth.Options{
		ResetCodeTTL:  cfg.Tokens.ResetCodeTTL,
		ResetAttempts: cfg.Tokens.ResetAttempts,
	})

	healthDeps := map[string]health.Pinger{"redis": sessions}
	if p, ok := users.(health.Pinger); ok {
		healthDeps["users"] = p
	}

	handler := router.New(router.Deps{
		Log:         log,
		Auth:        authService,
		Validate:    validate.New(),
		Cookies:     cookies.NewJar(cfg.Cookies.Secure, cfg.Cookies.Domain),
		RateLimit:   cfg.RateLimit,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Realtime:    realtime.NewGateway(log, authService, hub, cfg.Realtime),
		Health:      healthDeps,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", sl.Err(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
	} else {
		log.Info("server stopped gracefully")
	}

	stopHub()

	return nil
}

func openUserStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (auth.UserStore, func(), error) {
	if cfg.UserStore == config.UserStoreMemory {
		log.Warn("using in-memory user store; accounts are lost on restart")
		return memory.New(), func() {}, nil
	}

	repo, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		return nil, nil, err
	}

	if cfg.Postgres.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			log.Error("failed to apply migrations", sl.Err(err))
			return nil, nil, err
		}
	}

	return repo, repo.Close, nil
}
