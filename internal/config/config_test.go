package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
env: %s
user_store: memory
tokens:
  access_secret: a
  refresh_secret: %s
  reset_secret: c
cookies:
  secure: false
rabbitmq:
  url: amqp://localhost
`

func writeConfig(t *testing.T, env, refreshSecret string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(fmt.Sprintf(baseConfig, env, refreshSecret))
	require.NoError(t, os.WriteFile(path, body, 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "local", "b"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.ResetTTL)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.ResetCodeTTL)
	assert.Equal(t, 5, cfg.Tokens.ResetAttempts)
	assert.Equal(t, "mail", cfg.RabbitMQ.QueueName)
	assert.False(t, cfg.Cookies.Secure)
}

func TestLoadRejectsSharedSecrets(t *testing.T) {
	_, err := Load(writeConfig(t, "local", "a"))
	assert.ErrorContains(t, err, "distinct")
}

func TestLoadForcesSecureCookiesInProd(t *testing.T) {
	_, err := Load(writeConfig(t, "prod", "b"))
	require.ErrorContains(t, err, "memory user store")

	path := writeConfig(t, "prod", "b")
	t.Setenv("USER_STORE", UserStorePostgres)
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_DB", "d")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Cookies.Secure)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "local", "b")
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestLoadMailerNeedsNoSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
env: dev
rabbitmq:
  url: amqp://localhost
  queue_name: notifications
email:
  host: smtp.example.com
  from: noreply@example.com
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	_, err := Load(path)
	require.Error(t, err)

	cfg, err := LoadMailer(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "notifications", cfg.RabbitMQ.QueueName)
	assert.Equal(t, "smtp.example.com", cfg.Email.Host)
	assert.Equal(t, 587, cfg.Email.Port)
}

func TestLoadMailerRequiresHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rabbitmq:\n  url: amqp://localhost\n"), 0o600))

	_, err := LoadMailer(path)
	assert.ErrorContains(t, err, "email host")
}
