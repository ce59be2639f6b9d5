//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth_gateway/internal/config"
	"auth_gateway/internal/models"
	"auth_gateway/internal/storage"
)

// Requires TEST_POSTGRES_HOST (and friends) pointing at a disposable database.
func newTestRepo(t *testing.T) *UserRepo {
	t.Helper()

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("TEST_POSTGRES_HOST not set")
	}

	port, _ := strconv.Atoi(getenv("TEST_POSTGRES_PORT", "5432"))

	cfg := config.Postgres{
		Host:     host,
		Port:     port,
		User:     getenv("TEST_POSTGRES_USER", "postgres"),
		Password: getenv("TEST_POSTGRES_PASSWORD", "postgres"),
		DBName:   getenv("TEST_POSTGRES_DB", "auth_test"),
		SSLMode:  "disable",
		MaxConns: 4,
		MinConns: 1,
	}

	ctx := context.Background()

	repo, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.Migrate(ctx))

	_, err = repo.pool.Exec(ctx, `TRUNCATE users RESTART IDENTITY`)
	require.NoError(t, err)

	return repo
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestSaveAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.SaveUser(ctx, "alice", "a@x.com", "hash", models.RoleUser)
	require.NoError(t, err)

	for _, login := range []string{"alice", "ALICE", "a@x.com", "A@X.COM"} {
		u, err := repo.UserByLogin(ctx, login)
		require.NoError(t, err, login)
		assert.Equal(t, id, u.ID)
	}

	u, err := repo.UserByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = repo.UserByID(ctx, id+100)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestSaveUserDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.SaveUser(ctx, "alice", "a@x.com", "hash", models.RoleUser)
	require.NoError(t, err)

	_, err = repo.SaveUser(ctx, "bob", "A@X.com", "hash", models.RoleUser)
	assert.ErrorIs(t, err, storage.ErrUserExists)

	_, err = repo.SaveUser(ctx, "Alice", "b@x.com", "hash", models.RoleUser)
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestBanAndPassword(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.SaveUser(ctx, "alice", "a@x.com", "hash", models.RoleUser)
	require.NoError(t, err)

	require.NoError(t, repo.SetBanStatus(ctx, id, true, "spam"))
	u, err := repo.UserByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, u.Banned)
	assert.Equal(t, "spam", u.BanReason)

	require.NoError(t, repo.SetBanStatus(ctx, id, false, "ignored"))
	u, err = repo.UserByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, u.Banned)
	assert.Empty(t, u.BanReason)

	require.NoError(t, repo.UpdatePassword(ctx, id, "new-hash"))
	u, err = repo.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", u.PassHash)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, id+1, "x"), storage.ErrUserNotFound)
}

func TestResetCodeSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.SaveUser(ctx, "alice", "a@x.com", "hash", models.RoleUser)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.SetResetCode(ctx, id, "code-hash", now.Add(15*time.Minute)))

	err = repo.ConsumeResetCode(ctx, id, "wrong", now)
	assert.ErrorIs(t, err, storage.ErrResetCodeMismatch)

	err = repo.ConsumeResetCode(ctx, id, "code-hash", now.Add(16*time.Minute))
	assert.ErrorIs(t, err, storage.ErrResetCodeMismatch, "expired")

	require.NoError(t, repo.ConsumeResetCode(ctx, id, "code-hash", now))

	err = repo.ConsumeResetCode(ctx, id, "code-hash", now)
	assert.ErrorIs(t, err, storage.ErrResetCodeMismatch, fmt.Sprintf("second use for user %d", id))
}
