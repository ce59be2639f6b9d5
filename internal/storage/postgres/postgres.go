package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"auth_gateway/internal/config"
	"auth_gateway/internal/models"
	"auth_gateway/internal/storage"
	"auth_gateway/internal/storage/postgres/migrations"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, role, banned, ban_reason,
	reset_code_hash, reset_code_expires_at, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Postgres) (*UserRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &UserRepo{pool: pool}, nil
}

// Migrate applies the embedded goose migrations.
func (r *UserRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SaveUser inserts a user. Username and email are unique case-insensitively;
// a collision returns storage.ErrUserExists.
func (r *UserRepo) SaveUser(ctx context.Context, username, email, passHash, role string) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, username, email, passHash, role).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

// UserByLogin matches login against username or email, ignoring case.
// A username match wins over an email match.
func (r *UserRepo) UserByLogin(ctx context.Context, login string) (models.User, error) {
	const op = "storage.postgres.UserByLogin"

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		ORDER BY (LOWER(username) = LOWER($1)) DESC
		LIMIT 1;
	`

	return r.queryUser(ctx, op, query, login)
}

func (r *UserRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1);
	`

	return r.queryUser(ctx, op, query, email)
}

func (r *UserRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1;
	`

	return r.queryUser(ctx, op, query, id)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passHash string) error {
	const op = "storage.postgres.UpdatePassword"

	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	return r.execOne(ctx, op, query, id, passHash)
}

func (r *UserRepo) SetBanStatus(ctx context.Context, id int64, banned bool, reason string) error {
	const op = "storage.postgres.SetBanStatus"

	if !banned {
		reason = ""
	}

	query := `UPDATE users SET banned = $2, ban_reason = $3, updated_at = NOW() WHERE id = $1`

	return r.execOne(ctx, op, query, id, banned, reason)
}

// SetResetCode replaces any pending reset code for the user.
func (r *UserRepo) SetResetCode(ctx context.Context, id int64, codeHash string, expiresAt time.Time) error {
	const op = "storage.postgres.SetResetCode"

	query := `
		UPDATE users
		SET reset_code_hash = $2, reset_code_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	return r.execOne(ctx, op, query, id, codeHash, expiresAt)
}

// ConsumeResetCode clears the pending code if it matches codeHash and has not
// expired at now. Match and clear happen in one statement, so a code is
// accepted at most once.
func (r *UserRepo) ConsumeResetCode(ctx context.Context, id int64, codeHash string, now time.Time) error {
	const op = "storage.postgres.ConsumeResetCode"

	query := `
		UPDATE users
		SET reset_code_hash = NULL, reset_code_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND reset_code_hash = $2 AND reset_code_expires_at > $3
		RETURNING id;
	`

	var got int64

	err := r.pool.QueryRow(ctx, query, id, codeHash, now).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrResetCodeMismatch)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *UserRepo) ClearResetCode(ctx context.Context, id int64) error {
	const op = "storage.postgres.ClearResetCode"

	query := `
		UPDATE users
		SET reset_code_hash = NULL, reset_code_expires_at = NULL
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *UserRepo) Close() {
	r.pool.Close()
}

func (r *UserRepo) queryUser(ctx context.Context, op, query string, arg any) (models.User, error) {
	var (
		u         models.User
		codeHash  *string
		codeUntil *time.Time
	)

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PassHash,
		&u.Role,
		&u.Banned,
		&u.BanReason,
		&codeHash,
		&codeUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if codeHash != nil {
		u.ResetCodeHash = *codeHash
	}
	if codeUntil != nil {
		u.ResetCodeExpiresAt = *codeUntil
	}

	return u, nil
}

// execOne runs an update that must touch exactly one user row.
func (r *UserRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func dsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
