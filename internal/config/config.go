package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultConfigPath = "./config/config.yaml"

const (
	UserStorePostgres = "postgres"
	UserStoreMemory   = "memory"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	UserStore  string `yaml:"user_store" env:"USER_STORE" env-default:"postgres"`
	HTTPServer `yaml:"http_server"`
	Tokens     `yaml:"tokens"`
	Cookies    `yaml:"cookies"`
	CORS       `yaml:"cors"`
	RateLimit  `yaml:"rate_limit"`
	Realtime   `yaml:"realtime"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	Email      `yaml:"email"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type Tokens struct {
	Issuer        string        `yaml:"issuer" env-default:"auth_gateway"`
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	ResetSecret   string        `yaml:"reset_secret" env:"RESET_TOKEN_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	ResetTTL      time.Duration `yaml:"reset_token_ttl" env-default:"5m"`
	ResetCodeTTL  time.Duration `yaml:"reset_code_ttl" env-default:"15m"`
	ResetAttempts int           `yaml:"reset_code_attempts" env-default:"5"`
}

type Cookies struct {
	Secure bool   `yaml:"secure" env:"COOKIE_SECURE"`
	Domain string `yaml:"domain" env:"COOKIE_DOMAIN"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// RateLimit holds requests allowed per Window for each public endpoint.
type RateLimit struct {
	Window         time.Duration `yaml:"window" env-default:"1m"`
	Signup         int           `yaml:"signup" env-default:"5"`
	Login          int           `yaml:"login" env-default:"10"`
	Refresh        int           `yaml:"refresh" env-default:"30"`
	Logout         int           `yaml:"logout" env-default:"20"`
	ForgotPassword int           `yaml:"forgot_password" env-default:"3"`
	VerifyCode     int           `yaml:"verify_code" env-default:"10"`
	ResetPassword  int           `yaml:"reset_password" env-default:"5"`
}

type Realtime struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env-default:"3s"`
	PingInterval     time.Duration `yaml:"ping_interval" env-default:"30s"`
	AllowedOrigins   []string      `yaml:"allowed_origins" env:"WS_ALLOWED_ORIGINS" env-separator:","`
}

type Postgres struct {
	Host        string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port        int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User        string `yaml:"user" env:"POSTGRES_USER"`
	Password    string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName      string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode     string `yaml:"sslmode" env-default:"disable"`
	MaxConns    int32  `yaml:"max_conns" env-default:"10"`
	MinConns    int32  `yaml:"min_conns" env-default:"2"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"POSTGRES_AUTO_MIGRATE"`
}

type Redis struct {
	Addr      string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password  string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	OpTimeout time.Duration `yaml:"op_timeout" env-default:"2s"`
}

type RabbitMQ struct {
	URL            string        `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	QueueName      string        `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"mail"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env-default:"5s"`
}

// Email is only read by the mail sender.
type Email struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// Mailer is the subset read by the mail sender; it needs neither token
// secrets nor a database.
type Mailer struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	RabbitMQ `yaml:"rabbitmq"`
	Email    `yaml:"email"`
}

// MustLoad reads the config from CONFIG_PATH (or ./config/config.yaml) and
// panics on any error.
func MustLoad() *Config {
	cfg, err := Load(configPath())
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	return cfg
}

// Load reads the YAML file at path, applying environment overrides. A .env
// file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if err := read(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func MustLoadMailer() *Mailer {
	cfg, err := LoadMailer(configPath())
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	return cfg
}

// LoadMailer reads the same file as Load but only the sections the mail
// sender uses.
func LoadMailer(path string) (*Mailer, error) {
	const op = "config.LoadMailer"

	var cfg Mailer

	if err := read(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Email.Host == "" {
		return nil, fmt.Errorf("%s: email host is required", op)
	}

	return &cfg, nil
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	return defaultConfigPath
}

func read(path string, cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

func (c *Config) validate() error {
	t := c.Tokens
	if t.AccessSecret == t.RefreshSecret || t.AccessSecret == t.ResetSecret || t.RefreshSecret == t.ResetSecret {
		return errors.New("token secrets must be distinct")
	}

	if t.AccessTTL <= 0 || t.RefreshTTL <= 0 || t.ResetTTL <= 0 || t.ResetCodeTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}

	if t.ResetAttempts <= 0 {
		return errors.New("reset_code_attempts must be positive")
	}

	switch c.UserStore {
	case UserStorePostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return errors.New("postgres user and dbname are required")
		}
	case UserStoreMemory:
		if c.Env == "prod" {
			return errors.New("memory user store is not allowed in prod")
		}
	default:
		return fmt.Errorf("unknown user_store %q", c.UserStore)
	}

	if c.Env == "prod" {
		c.Cookies.Secure = true
	}

	return nil
}
